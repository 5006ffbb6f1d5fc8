// firegraph - wildfire disaster response chatbot server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/hupe1980/firegraph"
	"github.com/hupe1980/firegraph/checkpoint/sqlite"
	"github.com/hupe1980/firegraph/internal/config"
	"github.com/hupe1980/firegraph/internal/server"
	"github.com/hupe1980/firegraph/logging"
	"github.com/hupe1980/firegraph/memory"
	"github.com/hupe1980/firegraph/model"
	"github.com/hupe1980/firegraph/model/anthropic"
	"github.com/hupe1980/firegraph/model/openai"
	"github.com/hupe1980/firegraph/tool"
	"github.com/hupe1980/firegraph/tool/mcp"
)

func main() {
	once := flag.String("once", "", "answer a single question on stdout and exit")
	thread := flag.String("thread", "cli", "thread id used with -once")
	flag.Parse()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, false)
	if envErr != nil {
		logger.Info("No .env file found, using environment variables")
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err.Error())
		os.Exit(1)
	}

	if *once != "" {
		code := runOnce(app, *thread, *once, logger)
		_ = app.Shutdown()
		os.Exit(code)
	}

	if err := serve(cfg, app, logger); err != nil {
		logger.Error("Server failed", "error", err.Error())
		_ = app.Shutdown()
		os.Exit(1)
	}

	if err := app.Shutdown(); err != nil {
		logger.Error("Shutdown incomplete", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

func newApp(cfg *config.Config, logger logging.Logger) (*firegraph.App, error) {
	store, err := sqlite.Open(cfg.DBPath, func(o *sqlite.Options) { o.Logger = logger })
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	if err := store.Ping(context.Background()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("checkpoint store health check: %w", err)
	}

	dialer, allow, err := toolCatalog(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	knowledge := memory.NewInMemoryStore()
	if cfg.KnowledgeDir != "" {
		n, err := knowledge.LoadDir(cfg.KnowledgeDir)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("load knowledge: %w", err)
		}
		logger.Info("Knowledge loaded", "dir", cfg.KnowledgeDir, "passages", n)
	}

	app, err := firegraph.New(newModel(cfg, logger), func(o *firegraph.Options) {
		o.Dialer = dialer
		o.AllowList = allow
		o.Store = store
		o.Retriever = knowledge
		o.HistoryLimit = cfg.HistoryLimit
		o.MaxSteps = cfg.MaxSteps
		o.WorkerSteps = cfg.WorkerSteps
		o.TurnDeadline = cfg.TurnDeadline
		o.WorkerTimeout = cfg.WorkerTimeout
		o.Logger = logger
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return app, nil
}

// toolCatalog builds the MCP dialer. Without a servers file the gateway
// serves an empty catalog and workers run without tools.
func toolCatalog(cfg *config.Config, logger logging.Logger) (tool.Dialer, tool.AllowList, error) {
	if _, err := os.Stat(cfg.MCPServersFile); errors.Is(err, os.ErrNotExist) {
		logger.Warn("No MCP servers file found, tools disabled", "path", cfg.MCPServersFile)
		return tool.StaticDialer(tool.NewStaticCatalog()), tool.DefaultAllowList, nil
	}

	file, err := config.LoadServers(cfg.MCPServersFile)
	if err != nil {
		return nil, nil, err
	}

	dialer := mcp.NewDialer(file.Servers, func(o *mcp.Options) { o.Logger = logger })

	return dialer, file.Allow(), nil
}

func newModel(cfg *config.Config, logger logging.Logger) model.Model {
	if cfg.Model.Provider == config.ProviderAnthropic {
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model.Name)
			o.APIKey = cfg.Model.APIKey
			o.Temperature = cfg.Model.Temperature
			o.MaxRetries = cfg.Model.MaxRetries
			o.RequestTimeout = cfg.Model.RequestTimeout
			o.Logger = logger
		})
	}

	return openai.NewModel(func(o *openai.Options) {
		o.Model = cfg.Model.Name
		o.APIKey = cfg.Model.APIKey
		o.Temperature = cfg.Model.Temperature
		o.MaxRetries = cfg.Model.MaxRetries
		o.RequestTimeout = cfg.Model.RequestTimeout
		o.Logger = logger
	})
}

func runOnce(app *firegraph.App, threadID, question string, logger logging.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := app.Run(ctx, threadID, question)
	if res != nil {
		fmt.Println(res.Text)
	}

	if err != nil {
		logger.Error("Turn failed", "error", err.Error())
		if res == nil {
			fmt.Println(server.ErrorMessage)
		}
		return 1
	}

	return 0
}

func serve(cfg *config.Config, app *firegraph.App, logger logging.Logger) error {
	api := server.New(app, func(o *server.Options) {
		o.TurnDeadline = cfg.TurnDeadline
		o.Logger = logger
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	api.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.TurnDeadline + 5*time.Second, // sync turns run up to the turn deadline
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stop()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Cancels callback turns still in flight.
	api.Close()

	return nil
}
