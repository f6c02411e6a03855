package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"intramind/internal/adapter/store"
	"intramind/internal/auth"
	"intramind/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over HTTP",
	Long: `Start the HTTP API:

  POST /query    answer a question (bearer token required when auth is enabled)
  GET  /health   liveness check
  GET  /index    manifest of the served index

The index is reloaded from disk after a rebuild when server.watch_index
is set, and on SIGHUP.

Examples:
  intramind serve
  intramind serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return err
	}
	if !verifier.Enabled() {
		log.Warn().Msg("authentication is DISABLED - running in open mode")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	go reloadOnHangup(ctx, app)
	if cfg.Server.WatchIndex {
		if err := watchIndex(ctx, app); err != nil {
			log.Warn().Err(err).Msg("index watch disabled")
		}
	}

	srv := server.New(app.Query, app.Index, verifier, cfg.Server, log)
	return srv.ListenAndServe(ctx)
}

func reloadOnHangup(ctx context.Context, app *App) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := app.Reload(); err != nil {
				log.Error().Err(err).Msg("index reload failed, keeping current index")
			}
		}
	}
}

func watchIndex(ctx context.Context, app *App) error {
	w, err := store.NewWatcher(app.IndexPath)
	if err != nil {
		return err
	}
	go func() {
		err := w.Run(ctx, store.DefaultWatchDebounce, func() {
			if err := app.Reload(); err != nil {
				log.Error().Err(err).Msg("index reload failed, keeping current index")
			}
		})
		if err != nil {
			log.Error().Err(err).Msg("index watch stopped")
		}
	}()
	return nil
}
