package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/api"
	"github.com/kennydoit/fin-trade-craft/internal/api/handlers"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only HTTP API",
	Long: `Serves pipeline state over HTTP.

Endpoints:
  GET /health                              database health and pool stats
  GET /api/watermarks/summary              counts per dataset group
  GET /api/watermarks/{group}/blacklist    blacklisted entities of a group
  GET /api/quality                         data-quality report (cached)
  GET /api/recommendations/latest          most recent scoring run
  GET /api/scheduler/jobs                  job stats (scheduler start --api)

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "listen port (default PORT)")
}

// newAPIServer wires the handlers. jobs is nil unless the scheduler runs in
// the same process.
func newAPIServer(a *app, jobs handlers.JobStatsReader) *api.Server {
	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	router := api.NewRouter(api.Handlers{
		Health:     handlers.NewHealthHandler(a.db, a.redis, "fin-trade-craft", a.log),
		Watermarks: handlers.NewWatermarkHandler(a.marks, a.cache, a.log),
		Pipeline:   handlers.NewPipelineHandler(a.monitor(), a.scoringRepo(), jobs, a.log),
	}, a.log)
	return api.New(a.cfg, a.log, router)
}

func shutdownAPI(a *app, srv *api.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("API shutdown failed")
	}
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	srv := newAPIServer(a, nil)

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownAPI(a, srv)
	return nil
}
