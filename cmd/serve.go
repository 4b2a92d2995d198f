package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/ingest"
	"github.com/sells-group/dispatch-cli/internal/model"
)

var servePort int

// incidentScraper is the slice of the ingest service the HTTP API uses.
type incidentScraper interface {
	Scrape(ctx context.Context, p ingest.Params) ([]model.Incident, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the incident API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initServices(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		loc, err := cfg.Region.Location()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.service, loc),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(svc incidentScraper, loc *time.Location) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/api/incidents", handleIncidents(svc, loc))

	return r
}

// handleIncidents maps query parameters onto one ingestion run. The UI
// treats any failure as "nothing to show", so errors come back as an
// empty list rather than a status code.
func handleIncidents(svc incidentScraper, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		params := ingest.Params{
			Station:     q.Get("station"),
			MaxGeocode:  cfg.Geocode.MaxPerRun,
			Concurrency: cfg.Geocode.Concurrency,
		}
		if v, err := strconv.ParseBool(q.Get("geocode")); err == nil {
			params.Geocode = v
		}
		if s := q.Get("since"); s != "" {
			for _, layout := range []string{time.RFC3339, "2006-01-02"} {
				if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
					params.Since = &ts
					break
				}
			}
		}

		incidents, err := svc.Scrape(r.Context(), params)
		if err != nil {
			zap.L().Error("incident request failed",
				zap.String("station", params.Station),
				zap.Error(err),
			)
			incidents = nil
		}
		if incidents == nil {
			incidents = []model.Incident{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(incidents)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
