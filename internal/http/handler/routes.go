package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"fmeaflow/internal/model"
	"fmeaflow/internal/repository"
	"fmeaflow/internal/service"
)

// Services bundles everything the control surface exposes. The GUI shell
// is the only intended client; this listens on localhost.
type Services struct {
	Workflow *service.Workflow
	Recorder *service.Recorder
	Tokens   *service.TokenService
	Users    *service.UserService
	Settings *service.SettingsService
	Poller   *service.Poller
	Status   func() time.Time // reconciler last-check time
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay thin: parse, delegate, translate errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services) {
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/documents", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "20"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.Workflow.List(c.UserContext(), repository.PageQuery{Limit: limit, Offset: offset})
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"items": res.Items, "total": res.Total})
	})

	app.Get("/documents/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Workflow.Load(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(doc)
	})

	app.Get("/documents/:id/audit", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		entries, err := svc.Recorder.History(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"items": entries})
	})

	app.Get("/documents/:id/tokens", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		tokens, err := svc.Tokens.ListByDocument(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"items": tokens})
	})

	app.Get("/documents/:id/rendition", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		url, err := svc.Workflow.RenditionURL(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	})

	app.Post("/documents/:id/rename", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var body struct {
			Name    string `json:"name"`
			ActorID string `json:"actor_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		loaded, err := svc.Workflow.Load(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		if err := svc.Workflow.Rename(c.UserContext(), &loaded.Document, body.ActorID, body.Name); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(loaded.Document)
	})

	// System-wide audit query: ?from=RFC3339&to=RFC3339&user_id=&document_id=
	app.Get("/audit", func(c *fiber.Ctx) error {
		var f repository.AuditFilter
		if v := c.Query("from"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FROM", "invalid from timestamp")
			}
			f.From = &ts
		}
		if v := c.Query("to"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_TO", "invalid to timestamp")
			}
			f.To = &ts
		}
		f.UserID = c.Query("user_id")
		f.DocumentID = c.Query("document_id")

		entries, err := svc.Recorder.Search(c.UserContext(), f)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"items": entries})
	})

	app.Get("/users", func(c *fiber.Ctx) error {
		users, err := svc.Users.List(c.UserContext())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"items": users})
	})

	app.Post("/users", func(c *fiber.Ctx) error {
		var u model.User
		if err := c.BodyParser(&u); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		created, err := svc.Users.Create(c.UserContext(), &u)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	app.Get("/users/:id", func(c *fiber.Ctx) error {
		u, err := svc.Users.FindByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(u)
	})

	app.Get("/settings", func(c *fiber.Ctx) error {
		cfg, err := svc.Settings.Get(c.UserContext())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(cfg)
	})

	app.Put("/settings", func(c *fiber.Ctx) error {
		var cfg model.EmailSetting
		if err := c.BodyParser(&cfg); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		// Password is json:"-" on the model, so it needs its own parse.
		var secret struct {
			Password string `json:"password"`
		}
		if err := c.BodyParser(&secret); err == nil && secret.Password != "" {
			cfg.Password = secret.Password
		}
		if err := svc.Settings.Save(c.UserContext(), &cfg); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Post("/settings/test", func(c *fiber.Ctx) error {
		res, err := svc.Settings.Test(c.UserContext())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	})

	app.Post("/reconciler/poll", func(c *fiber.Ctx) error {
		summary, err := svc.Poller.Tick(c.UserContext())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"summary": summary})
	})

	app.Get("/reconciler/status", func(c *fiber.Ctx) error {
		last := svc.Status()
		res := fiber.Map{"checked": !last.IsZero()}
		if !last.IsZero() {
			res["last_check_time"] = last.UTC().Format(time.RFC3339)
		}
		return c.JSON(res)
	})
}

// serviceError translates service sentinels into API error responses.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrIDRequired), errors.Is(err, service.ErrInvalidInput):
		return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrDenied):
		return writeError(c, fiber.StatusConflict, "NOT_PERMITTED", "operation not permitted in the current state")
	case errors.Is(err, service.ErrMailNotConfigured):
		return writeError(c, fiber.StatusPreconditionFailed, "MAIL_NOT_CONFIGURED", "email settings are not configured")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
