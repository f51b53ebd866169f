package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/database"
	"github.com/arnold/memories-api/internal/handlers"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/routes"
	"github.com/arnold/memories-api/internal/services"
)

type ServeOptions struct {
	*RootOptions
	Port    string
	Migrate bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", "", "listen port (defaults to PORT / config)")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", true, "run schema migrations before serving")

	return cmd
}

// NewServer builds the fiber app with every route registered.
func NewServer(ctx context.Context, a *app) (*fiber.App, *handlers.Handler) {
	hub := handlers.NewHub()
	push := services.NewPush(ctx, a.db, a.cfg.FCMServiceAccount)
	notifier := services.NewNotifier(a.db, push, hub)
	a.memories.SetNotifier(notifier)

	h := handlers.New(handlers.Deps{
		DB:       a.db,
		Auth:     middleware.NewAuth(a.cfg.JWTSecret),
		Boards:   a.boards,
		Memories: a.memories,
		Drafts:   a.drafts,
		Uploader: services.NewLocalUploader(a.cfg.UploadDir, a.cfg.UploadURLPrefix),
		Notifier: notifier,
		Hub:      hub,
	})

	server := fiber.New(fiber.Config{
		AppName:      "memories-api",
		BodyLimit:    services.MaxUploadSize + 1024*1024,
		ErrorHandler: errorHandler,
	})
	server.Use(recover.New())
	server.Use(cors.New())

	routes.Setup(server, h, a.cfg.UploadDir, a.cfg.UploadURLPrefix)
	return server, h
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"error":   fiber.Map{"message": fe.Message},
		})
	}
	return common.RespondError(c, err)
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Component("server")
	cfg := opts.Config

	a, err := openApp(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to database", err)
	}
	defer a.Close()

	if opts.Migrate {
		if err := database.Migrate(a.db); err != nil {
			return WrapExitError(ExitCommandError, "failed to migrate database", err)
		}
	}

	server, _ := NewServer(ctx, a)

	port := opts.Port
	if port == "" {
		port = cfg.Port
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Str("env", cfg.Env).Msg("server starting")
		errCh <- server.Listen(":" + port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return WrapExitError(ExitFailure, "server stopped", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}
