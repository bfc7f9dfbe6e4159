package llm

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/toolgate/toolgate/internal/config"
)

// Header names for gateways that authenticate consumers by RSA signature
// instead of bearer keys.
const (
	HeaderConsumerID = "X-Consumer-Id"
	HeaderTimestamp  = "X-Consumer-Timestamp"
	HeaderKeyVersion = "X-Key-Version"
	HeaderSignature  = "X-Auth-Signature"
)

// GatewaySigner signs outgoing LLM requests with PKCS#1 v1.5 RSA-SHA256 over
// "<consumer id>\n<epoch millis>\n<key version>\n".
type GatewaySigner struct {
	consumerID string
	keyVersion string
	key        *rsa.PrivateKey
	now        func() time.Time
}

// NewGatewaySigner loads the PEM private key named by cfg and validates the
// consumer identity.
func NewGatewaySigner(cfg config.GatewayAuthConfig) (*GatewaySigner, error) {
	if cfg.ConsumerID == "" {
		return nil, fmt.Errorf("gateway auth: consumer id is required")
	}
	if cfg.PrivateKeyPath == "" {
		return nil, fmt.Errorf("gateway auth: private key path is required")
	}
	raw, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("gateway auth: read private key: %w", err)
	}
	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("gateway auth: %w", err)
	}
	version := cfg.KeyVersion
	if version == "" {
		version = "1"
	}
	return &GatewaySigner{
		consumerID: cfg.ConsumerID,
		keyVersion: version,
		key:        key,
		now:        time.Now,
	}, nil
}

// Sign adds the consumer identity, timestamp, key version, and signature
// headers to h.
func (s *GatewaySigner) Sign(h http.Header) error {
	// Whole-second epoch millis, matching what gateway verifiers expect.
	ts := s.now().Unix() * 1000
	payload := fmt.Sprintf("%s\n%d\n%s\n", s.consumerID, ts, s.keyVersion)

	digest := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("sign payload: %w", err)
	}

	h.Set(HeaderConsumerID, s.consumerID)
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderKeyVersion, s.keyVersion)
	h.Set(HeaderSignature, base64.StdEncoding.EncodeToString(sig))
	return nil
}

func parsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}
