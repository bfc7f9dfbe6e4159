package handlers

// @title Toolgate API
// @version 1.0.0
// @description Governed tool-calling gateway: chat turns, approvals, policies.

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/labstack/echo/v4"
)

//go:generate go run github.com/swaggo/swag/cmd/swag@latest init -g swagger.go -o ../../docs --parseDependency --parseInternal

var (
	specJSON []byte
	specOnce sync.Once
	specErr  error
)

// SwaggerHandler serves the generated OpenAPI document and a small UI page.
type SwaggerHandler struct {
	logger *slog.Logger
}

func NewSwaggerHandler(log *slog.Logger) *SwaggerHandler {
	return &SwaggerHandler{logger: log.With(slog.String("handler", "swagger"))}
}

func (h *SwaggerHandler) Register(e *echo.Echo) {
	e.GET("api/swagger.json", h.Spec)
	e.GET("api/docs", h.UI)
	e.GET("api/docs/", h.UI)
}

// Spec serves docs/swagger.json, loading it from disk on first request so a
// binary built without generated docs still starts.
func (h *SwaggerHandler) Spec(c echo.Context) error {
	specOnce.Do(func() {
		specJSON, specErr = os.ReadFile("docs/swagger.json")
	})
	if specErr != nil {
		h.logger.Warn("swagger spec unavailable", slog.String("error", specErr.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, specErr.Error())
	}
	return c.Blob(http.StatusOK, "application/json", specJSON)
}

// UI serves the Swagger UI shell pointed at the spec endpoint.
func (h *SwaggerHandler) UI(c echo.Context) error {
	return c.HTML(http.StatusOK, swaggerUIHTML)
}

const swaggerUIHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>Toolgate API docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        window.ui = SwaggerUIBundle({
          url: '/api/swagger.json',
          dom_id: '#swagger-ui',
          deepLinking: true
        });
      };
    </script>
  </body>
</html>`
