package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glampguide/funnel-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for resolution requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		newResolver := buildResolver(false)
		runBatch := func(runCtx context.Context) {
			summary, err := runResolve(runCtx, st, newResolver, 0)
			if err != nil {
				zap.L().Error("webhook resolution failed", zap.Error(err))
				return
			}
			zap.L().Info("webhook resolution complete",
				zap.String("run_id", summary.RunID),
				zap.Int("processed", summary.Processed),
				zap.Int("errors", summary.Errors),
			)
		}

		mux := buildMux(ctx, st, runBatch)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			if err := shutdownGracefully(srv, 10*time.Second); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// shutdownGracefully drains in-flight requests before closing. The trigger
// context is already cancelled by the time shutdown starts, so the drain
// runs under its own timeout.
func shutdownGracefully(srv *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildMux assembles the webhook routes. runBatch may be nil, in which case
// the webhook accepts requests but triggers nothing (used in tests).
func buildMux(ctx context.Context, st store.Store, runBatch func(context.Context)) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		counts, err := st.StageCounts(r.Context())
		if err != nil {
			zap.L().Error("stage counts failed", zap.Error(err))
			http.Error(w, `{"error":"stage counts failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(counts)
	})

	mux.HandleFunc("POST /webhook/resolve", func(w http.ResponseWriter, r *http.Request) {
		// Resolution runs asynchronously; the webhook only acknowledges.
		if runBatch != nil {
			go runBatch(ctx)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	})

	return mux
}
