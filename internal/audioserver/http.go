package audioserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
	"github.com/anatolykoptev/go_voice2word/internal/engine/transcribe"
)

// multipartOverhead is the body slack allowed on top of the upload limit so
// oversized files reach the handler and get a JSON 413.
const multipartOverhead = 1 << 20

// AppConfig configures the HTTP surface.
type AppConfig struct {
	ClientURL string
	Metrics   func() string
}

// NewApp builds the fiber app serving the transcription API.
func NewApp(svc *Service, cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "go_voice2word",
		BodyLimit:             int(svc.maxUpload()) + multipartOverhead,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(svc.maxUpload()),
	})

	app.Use(recover.New())
	if cfg.ClientURL != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.ClientURL,
			AllowCredentials: true,
		}))
	}

	api := app.Group("/api")
	api.Post("/transcribe", svc.handleTranscribe)
	api.Get("/health", handleHealth)
	api.Get("/config-check", func(c *fiber.Ctx) error {
		return c.JSON(svc.Status)
	})

	if cfg.Metrics != nil {
		app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.SendString(cfg.Metrics())
		})
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "endpoint not found"})
	})
	return app
}

func (s *Service) handleTranscribe(c *fiber.Ctx) error {
	req, err := s.parseRequest(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c.UserContext(), c.Context())
	defer cancel()
	res, err := s.Pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// requestContext derives the run context from the user context and cancels it
// when the server side is done, e.g. on shutdown. fasthttp does not surface
// client disconnects, so per-stage deadlines still bound a run.
func requestContext(user, server context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(user)
	stop := context.AfterFunc(server, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// parseRequest accepts a multipart "audio" file, or a "url" given as a form
// field or in a JSON body. A file wins when both are present.
func (s *Service) parseRequest(c *fiber.Ctx) (transcribe.Request, error) {
	if fh, err := c.FormFile("audio"); err == nil {
		path, err := s.storeUpload(c, fh)
		if err != nil {
			return transcribe.Request{}, err
		}
		return transcribe.Request{Kind: transcribe.SourceFile, FilePath: path, OriginalName: fh.Filename}, nil
	}

	rawURL := strings.TrimSpace(c.FormValue("url"))
	if rawURL == "" && strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var body struct {
			URL string `json:"url"`
		}
		if err := c.BodyParser(&body); err != nil {
			return transcribe.Request{}, engine.NewError(engine.KindInvalidRequest, engine.StageAcquiring,
				"invalid JSON body", err)
		}
		rawURL = strings.TrimSpace(body.URL)
	}
	if rawURL == "" {
		return transcribe.Request{}, engine.NewError(engine.KindInvalidRequest, engine.StageAcquiring,
			"please provide an audio file or URL", nil)
	}
	return transcribe.Request{Kind: transcribe.SourceURL, URL: rawURL}, nil
}

func handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"message":   "Voice2Word API is running",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// errorHandler renders every error as {"error": message}. Pipeline errors
// carry their own status and message and are logged by the pipeline; only
// unclassified failures are logged here.
func errorHandler(uploadLimit int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			msg := fe.Message
			if fe.Code == fiber.StatusRequestEntityTooLarge {
				msg = tooLargeMessage(uploadLimit)
			}
			return c.Status(fe.Code).JSON(fiber.Map{"error": msg})
		}

		status := engine.HTTPStatus(err)
		if engine.KindOf(err) == "" {
			slog.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(status).JSON(fiber.Map{"error": engine.UserMessage(err)})
	}
}
