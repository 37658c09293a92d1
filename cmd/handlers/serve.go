package handlers

import (
	"context"
	"fmt"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/logger"
	"newsdesk/internal/server"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON read API",
		Long: `Start an HTTP server exposing stored articles and analyses.

Endpoints:
  GET /health                      Database check
  GET /api/articles                ?date=&source=&limit=&offset=
  GET /api/articles/{id}           One article
  GET /api/articles/{id}/critique  The article's critique
  GET /api/analyses                Analyses, newest first
  GET /api/analyses/{date}         One analysis

The server only reads. Run 'newsdesk ingest' and 'newsdesk analyze'
separately (e.g. via cron) to keep content fresh.

Examples:
  newsdesk serve
  newsdesk serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	serverCfg := config.Get().Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	srv := server.New(db, serverCfg)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	// The command context is cancelled on SIGINT/SIGTERM.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		log.Info("Server shutdown initiated", "reason", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(serverCfg.ShutdownTimeout, 10*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
