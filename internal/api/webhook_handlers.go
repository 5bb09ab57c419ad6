package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/javi11/mediahook/internal/errors"
	"github.com/javi11/mediahook/internal/events"
)

// webhookHandler builds the handler for one provider's webhook endpoint.
// The response is always a generic acknowledgment: delivery problems are
// surfaced through logs and notifications, never through status codes the
// sending application would retry on.
func (s *Server) webhookHandler(provider events.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 {
			return c.Status(400).JSON(fiber.Map{
				"success": false,
				"message": "Empty request body",
			})
		}

		ev, err := events.Parse(provider, body)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrEventIgnored):
				slog.DebugContext(c.Context(), "Webhook event ignored",
					"provider", provider, "err", err)
			case errors.Is(err, apperrors.ErrParse):
				slog.WarnContext(c.Context(), "Failed to parse webhook payload",
					"provider", provider, "err", err)
			default:
				slog.ErrorContext(c.Context(), "Unexpected webhook error",
					"provider", provider, "err", err)
			}
			return c.Status(200).JSON(fiber.Map{
				"success": true,
				"message": "Ignored",
			})
		}

		slog.InfoContext(c.Context(), "Received webhook event",
			"provider", ev.Provider,
			"kind", ev.Kind,
			"title", ev.Title,
			"group_key", ev.GroupKey())

		if s.sink != nil {
			s.sink.Offer(*ev)
		}
		s.engine.OnImportEvent(*ev)

		return c.Status(200).JSON(fiber.Map{
			"success": true,
			"message": "Accepted",
		})
	}
}
