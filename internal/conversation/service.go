// Package conversation drives the governed tool-calling loop: it restores a
// session from the store, interleaves chat completions with policy-gated tool
// execution, suspends the turn when a call needs human approval, and resumes
// from the persisted suspension point on the next submitted message.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/toolgate/toolgate/internal/governor"
	"github.com/toolgate/toolgate/internal/llm"
	"github.com/toolgate/toolgate/internal/session"
)

var (
	ErrEmptyConversationID = errors.New("conversation id is required")
	ErrEmptyUserText       = errors.New("user input is required")
	ErrNoPendingApproval   = errors.New("no approval is pending")
	ErrToolRoundsExceeded  = errors.New("too many tool call rounds")
)

const (
	defaultHistoryWindow = 20
	defaultMaxToolRounds = 8
)

// Options bound the loop. Zero values fall back to the package defaults.
type Options struct {
	// SystemPrompt is inserted once at position 0 of a new conversation.
	SystemPrompt string
	// HistoryWindow caps how many messages are supplied to the model per
	// completion. The full history is always persisted.
	HistoryWindow int
	// MaxToolRounds caps completions per turn before the loop aborts.
	MaxToolRounds int
}

// TurnResult is the outcome of one submitted turn: either the final assistant
// answer, an approval prompt, or the denial notice for an abandoned call.
type TurnResult struct {
	Response string        `json:"response"`
	State    session.State `json:"state"`
}

// Service orchestrates turns for all conversations. A turn either runs to a
// final answer or suspends on the first tool call that requires approval;
// the session record the store holds is only updated at those two points (or
// when a denial settles a pending approval), so a failed turn leaves the
// previous state intact and resumable.
//
// Turns for one conversation id must not run concurrently; the service does
// no per-key locking, and concurrent writers would overwrite each other's
// history.
type Service struct {
	logger *slog.Logger
	store  session.Store
	gov    *governor.Service
	tools  ToolTransport
	llm    llm.Backend
	opts   Options
	now    func() time.Time
}

// NewService creates the conversation loop service.
func NewService(log *slog.Logger, store session.Store, gov *governor.Service, tools ToolTransport, backend llm.Backend, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}
	return &Service{
		logger: log.With(slog.String("service", "conversation")),
		store:  store,
		gov:    gov,
		tools:  tools,
		llm:    backend,
		opts:   opts,
		now:    time.Now,
	}
}

// SubmitTurn processes one user turn and returns the final answer or an
// approval prompt. While an approval is pending the text is consumed as the
// yes/no answer to it, not as a new conversation message.
func (s *Service) SubmitTurn(ctx context.Context, conversationID, userText string) (TurnResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return TurnResult{}, ErrEmptyConversationID
	}
	if strings.TrimSpace(userText) == "" {
		return TurnResult{}, ErrEmptyUserText
	}

	rec, err := s.store.Get(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return TurnResult{}, fmt.Errorf("restore session: %w", err)
		}
		rec = session.NewRecord(conversationID, s.now())
	}

	if rec.Pending != nil {
		return s.resolveApproval(ctx, rec, userText)
	}

	// The system prompt is inserted exactly once per conversation.
	if len(rec.Messages) == 0 || rec.Messages[0].Role != session.RoleSystem {
		rec.Messages = append([]session.Message{session.SystemMessage(s.opts.SystemPrompt)}, rec.Messages...)
	}
	rec.Append(session.UserMessage(userText))
	return s.runCycle(ctx, rec)
}

// History returns the full persisted transcript and the conversation state.
func (s *Service) History(ctx context.Context, conversationID string) ([]session.Message, session.State, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, "", ErrEmptyConversationID
	}
	rec, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	return rec.Messages, rec.State(), nil
}

// Delete drops a conversation's durable record. Deleting a conversation that
// does not exist is not an error.
func (s *Service) Delete(ctx context.Context, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	return s.store.Delete(ctx, conversationID)
}

// runCycle alternates completions and tool execution until the model answers
// without tool calls or a call suspends the turn.
func (s *Service) runCycle(ctx context.Context, rec *session.Record) (TurnResult, error) {
	s.ensureTools(rec)

	for round := 0; round < s.opts.MaxToolRounds; round++ {
		turn, err := s.llm.Complete(ctx, llm.CompletionRequest{
			Messages: s.window(rec.Messages),
			Tools:    toolSpecs(rec.Tools),
		})
		if err != nil {
			return TurnResult{}, fmt.Errorf("llm completion: %w", err)
		}

		if len(turn.ToolCalls) == 0 {
			rec.Append(session.AssistantMessage(turn.Content))
			if err := s.store.Put(ctx, rec); err != nil {
				return TurnResult{}, fmt.Errorf("persist session: %w", err)
			}
			return TurnResult{Response: turn.Content, State: session.StateIdle}, nil
		}

		rec.Append(session.Message{
			Role:      session.RoleAssistant,
			Content:   turn.Content,
			ToolCalls: turn.ToolCalls,
		})
		res, suspended, err := s.resolveBatch(ctx, rec, turn.ToolCalls, 0, false)
		if err != nil {
			return TurnResult{}, err
		}
		if suspended {
			return res, nil
		}
	}
	return TurnResult{}, fmt.Errorf("%w: %d completions without a final answer", ErrToolRoundsExceeded, s.opts.MaxToolRounds)
}

// resolveBatch settles an assistant-requested tool call batch in request
// order. start and approved describe a resumed batch: calls before start were
// settled before the suspension, and the call at start has been granted
// approval by the user. Suspension persists the record and hands control back
// to the caller; a rate denial is absorbed as a tool result and the batch
// continues.
func (s *Service) resolveBatch(ctx context.Context, rec *session.Record, batch []session.ToolCall, start int, approved bool) (TurnResult, bool, error) {
	for i := start; i < len(batch); i++ {
		call := batch[i]
		granted := approved && i == start

		if !granted && s.gov.RequiresApproval(call.Name) {
			rec.Suspend(call, s.now())
			if err := s.store.Put(ctx, rec); err != nil {
				return TurnResult{}, false, fmt.Errorf("persist suspension: %w", err)
			}
			s.logger.Info("turn suspended for approval",
				slog.String("conversation_id", rec.ID),
				slog.String("tool", call.Name),
			)
			return TurnResult{Response: approvalPrompt(call), State: session.StateAwaitingApproval}, true, nil
		}

		if !s.gov.ConsumeRate(call.Name) {
			rec.Append(session.ToolResultMessage(call.ID, rateLimitNotice(call.Name)))
			continue
		}

		out, err := s.tools.CallTool(ctx, call.Name, call.Args)
		if err != nil {
			return TurnResult{}, false, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		text := out.Text
		if out.IsError && text == "" {
			text = "tool call failed"
		}
		rec.Append(session.ToolResultMessage(call.ID, text))
	}
	return TurnResult{}, false, nil
}

// resolveApproval settles a pending approval with the user's answer. An
// affirmative answer restores the suspension snapshot, executes the approved
// call, finishes the rest of its batch, and re-enters the completion cycle.
// Anything else abandons the call permanently: a denial notice is appended,
// the pending marker is cleared, and the turn ends. The answer itself is
// never part of the transcript.
func (s *Service) resolveApproval(ctx context.Context, rec *session.Record, answer string) (TurnResult, error) {
	pending := rec.Pending
	if pending == nil {
		return TurnResult{}, ErrNoPendingApproval
	}

	if !isAffirmative(answer) {
		rec.Pending = nil
		notice := denialNotice(pending.Request.Name)
		rec.Append(session.AssistantMessage(notice))
		if err := s.store.Put(ctx, rec); err != nil {
			return TurnResult{}, fmt.Errorf("persist session: %w", err)
		}
		s.logger.Info("tool call denied",
			slog.String("conversation_id", rec.ID),
			slog.String("tool", pending.Request.Name),
		)
		return TurnResult{Response: notice, State: session.StateIdle}, nil
	}

	rec.Messages = pending.Snapshot
	rec.Pending = nil
	batch, start := suspendedBatch(rec.Messages, pending.Request.ID)
	if batch == nil {
		return TurnResult{}, fmt.Errorf("approved call %s missing from suspension snapshot", pending.Request.ID)
	}
	s.logger.Info("tool call approved",
		slog.String("conversation_id", rec.ID),
		slog.String("tool", pending.Request.Name),
	)

	res, suspended, err := s.resolveBatch(ctx, rec, batch, start, true)
	if err != nil {
		return TurnResult{}, err
	}
	if suspended {
		return res, nil
	}
	return s.runCycle(ctx, rec)
}

// suspendedBatch locates the approved request inside the snapshot's final
// assistant tool-call message. The snapshot may end with tool results for
// batch members settled before the suspension.
func suspendedBatch(msgs []session.Message, requestID string) ([]session.ToolCall, int) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == session.RoleTool {
			continue
		}
		if msgs[i].Role != session.RoleAssistant || len(msgs[i].ToolCalls) == 0 {
			return nil, 0
		}
		for j, call := range msgs[i].ToolCalls {
			if call.ID == requestID {
				return msgs[i].ToolCalls, j
			}
		}
		return nil, 0
	}
	return nil, 0
}

// ensureTools fills the record's cached tool schemas on first use so the
// conversation keeps a stable tool view across turns.
func (s *Service) ensureTools(rec *session.Record) {
	if len(rec.Tools) > 0 {
		return
	}
	catalog := s.tools.Tools()
	if len(catalog) == 0 {
		return
	}
	cached := make([]session.CachedTool, 0, len(catalog))
	for _, t := range catalog {
		cached = append(cached, session.CachedTool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	rec.Tools = cached
}

// window returns the slice of history supplied to the model: the most recent
// HistoryWindow messages, with the system message pinned at position 0. The
// window never opens on a tool result whose requesting assistant message was
// cut off, since backends reject orphaned tool messages.
func (s *Service) window(msgs []session.Message) []session.Message {
	limit := s.opts.HistoryWindow
	if len(msgs) <= limit {
		return msgs
	}

	var head []session.Message
	if msgs[0].Role == session.RoleSystem {
		head = msgs[:1]
		limit--
	}
	tail := msgs[len(msgs)-limit:]
	for len(tail) > 0 && tail[0].Role == session.RoleTool {
		tail = tail[1:]
	}
	if head == nil {
		return tail
	}
	out := make([]session.Message, 0, len(head)+len(tail))
	out = append(out, head...)
	return append(out, tail...)
}

func toolSpecs(tools []session.CachedTool) []llm.ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return specs
}
