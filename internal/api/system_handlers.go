package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleLive(c *fiber.Ctx) error {
	return c.Status(200).JSON(fiber.Map{
		"status": "ok",
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	cfg := s.configGetter()

	openWindows := 0
	if s.sink != nil {
		openWindows = s.sink.OpenWindows()
	}

	return c.Status(200).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
			"dry_run":        cfg.General.IsDryRun(),
			"busy_roots":     s.engine.BusyRoots(),
			"open_windows":   openWindows,
			"last_outcomes":  s.engine.LastOutcomes(),
		},
	})
}

// handleReconcile triggers one reconciliation pass for a root and waits for
// it to finish. A run already in flight for the same root reports back as
// skipped.
func (s *Server) handleReconcile(c *fiber.Ctx) error {
	root := c.Params("root")

	outcome, err := s.engine.TriggerRoot(c.Context(), root)
	if err != nil {
		slog.WarnContext(c.Context(), "Manual reconciliation rejected", "root", root, "err", err)
		return c.Status(404).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	if outcome.Skipped {
		return c.Status(200).JSON(fiber.Map{
			"success": true,
			"message": "Reconciliation already running",
			"data":    outcome,
		})
	}
	return c.Status(200).JSON(fiber.Map{
		"success": true,
		"message": "Reconciliation finished",
		"data":    outcome,
	})
}

// ManualImportRequest asks the engine to reconcile the torrents behind one
// manually imported file.
type ManualImportRequest struct {
	Root     string `json:"root"`
	FilePath string `json:"file_path"`
	Title    string `json:"title"`
}

func (s *Server) handleManualImport(c *fiber.Ctx) error {
	var req ManualImportRequest
	if err := c.BodyParser(&req); err != nil {
		slog.WarnContext(c.Context(), "Failed to parse manual import body", "err", err)
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if req.Root == "" || req.FilePath == "" {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "root and file_path are required",
		})
	}

	outcome, err := s.engine.ManualImport(c.Context(), req.Root, req.FilePath, req.Title)
	if err != nil {
		slog.ErrorContext(c.Context(), "Manual import reconciliation failed",
			"root", req.Root, "file_path", req.FilePath, "err", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	return c.Status(200).JSON(fiber.Map{
		"success": true,
		"message": "Manual import processed",
		"data":    outcome,
	})
}
