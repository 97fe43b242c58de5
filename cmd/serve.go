package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for pipeline runs and company reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, e),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API surface. runCtx bounds detached pipeline runs to
// the server's lifetime; request handlers use their own request contexts.
func newRouter(runCtx context.Context, e *env) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/pipeline/run", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Tickers  []string `json:"tickers"`
			Quarters []string `json:"quarters"`
			Steps    []string `json:"steps"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		quarters, err := targetQuarters(body.Quarters)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, step := range body.Steps {
			if !pipeline.ValidStep(step) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown step %q", step))
				return
			}
		}

		// Pipeline runs take minutes; accept and run detached from the
		// request.
		go func() {
			summary, err := e.Pipeline.Run(runCtx, body.Tickers, quarters, body.Steps)
			if err != nil {
				zap.L().Error("api pipeline run failed", zap.Error(err))
				return
			}
			zap.L().Info("api pipeline run complete", zap.Bool("ok", summary.OK))
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "accepted",
			"tickers": body.Tickers,
		})
	})

	r.Get("/v1/companies", func(w http.ResponseWriter, req *http.Request) {
		companies, err := e.Store.ListCompanies(req.Context())
		if err != nil {
			zap.L().Error("list companies failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, companies)
	})

	r.Get("/v1/companies/{ticker}/analysis", func(w http.ResponseWriter, req *http.Request) {
		ticker := chi.URLParam(req, "ticker")
		analysis, err := e.Pipeline.BuildCompanyAnalysis(req.Context(), ticker)
		if err != nil {
			zap.L().Error("build analysis failed", zap.String("ticker", ticker), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if analysis == nil {
			writeError(w, http.StatusNotFound, "company not found")
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
