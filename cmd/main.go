package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doorprize/internal/config"
	"doorprize/internal/handlers"
	"doorprize/internal/services"
	"doorprize/internal/store"
	"doorprize/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

//go:embed all:templates
var templateFS embed.FS

//go:embed all:assets
var assetsFS embed.FS

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. Load configuration
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	// 2. Initialize logging
	logOut := io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	defer logger.Init("doorprize", cfg.Verbose, false, logOut).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the store holding candidates and winners
	st, err := store.Open(ctx, cfg.StoreType, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.StoreType, err)
	}
	defer st.Close()

	// 4. Initialize the Lottery Service
	lotteryService, err := services.NewLotteryService(ctx, st,
		services.WithCountdown(cfg.Countdown),
		services.WithTitle(cfg.Title),
	)
	if err != nil {
		return err
	}
	defer lotteryService.Close()

	// 5. Load HTML templates from the embedded filesystem.
	templates, err := handlers.ParseTemplates(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}

	// 6. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(lotteryService, templates)

	// 7. Set up the Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger())

	// 8. Serve static files from the embedded filesystem.
	assetsSubFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return fmt.Errorf("creating assets sub-filesystem: %w", err)
	}
	r.StaticFS("/assets", http.FS(assetsSubFS))

	// 9. Register routes; operator routes sit behind basic auth when configured
	httpHandler.RegisterPublicRoutes(r)
	operator := r.Group("/")
	if cfg.AuthEnabled() {
		operator.Use(gin.BasicAuth(gin.Accounts{cfg.OperatorUser: cfg.OperatorPass}))
	}
	httpHandler.RegisterRoutes(operator)

	// 10. Mount the live display channel
	sock := ws.New(lotteryService, !cfg.AuthEnabled()).Mount(r)
	defer sock.Close()

	// 11. Run the server until interrupted
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on http://localhost:%d (%s store)", cfg.Port, cfg.StoreType)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("running server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
