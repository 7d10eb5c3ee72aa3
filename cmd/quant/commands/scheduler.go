package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/scheduler"
	"github.com/kennydoit/fin-trade-craft/internal/scheduler/jobs"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "In-process cron trigger for the incremental sweeps",
	Long: `Runs the same incremental sweeps as the CLI on the cron expressions in the
pipeline config (six fields, seconds first).

Jobs:
  registry_sync  schedule.registry_sync
  extraction     schedule.extraction, every provider group, schedule.extraction_limit per group
  features       schedule.features
  signals        schedule.signals

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler start --api
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run extraction`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler and block until Ctrl+C",
		RunE:  runSchedulerStart,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List jobs and their schedules",
		RunE:  runSchedulerList,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerRun,
	}
)

var (
	schedulerWorkers int
	schedulerWithAPI bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd, schedulerListCmd, schedulerRunCmd)

	schedulerCmd.PersistentFlags().IntVar(&schedulerWorkers, "workers", 0, "parallel entities for features and signals (default NumCPU)")
	schedulerStartCmd.Flags().BoolVar(&schedulerWithAPI, "api", false, "also serve the HTTP API with job stats")
}

// newScheduler registers every pipeline job
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	gen, err := a.signalGenerator()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log)
	for _, job := range []scheduler.Job{
		jobs.NewRegistrySyncJob(a.syncer(), a.pipeline.Schedule.RegistrySync, a.log),
		jobs.NewExtractionJob(a.extractor(), a.pipeline, a.log),
		jobs.NewFeaturesJob(a.featureRunner(), a.pipeline, schedulerWorkers, a.log),
		jobs.NewSignalsJob(gen, a.pipeline, schedulerWorkers, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	sched.Start()
	PrintHeader("Scheduler started")
	for _, name := range sched.JobNames() {
		PrintKeyValue(name, "next "+sched.NextRun(name).Format(time.RFC1123), 14)
	}

	if schedulerWithAPI {
		srv := newAPIServer(a, sched)
		go func() {
			if err := srv.Start(); err != nil {
				a.log.WithError(err).Error("API server stopped")
				cancel()
			}
		}()
		defer shutdownAPI(a, srv)
	}

	fmt.Println("\nPress Ctrl+C to stop")
	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	return nil
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}

	widths := []int{16, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE"}, widths)
	for _, st := range sched.Stats() {
		PrintTableRow([]string{st.JobName, st.Schedule}, widths)
	}
	return nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	if err := sched.RunNow(ctx, args[0]); err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %s", args[0], time.Since(start).Round(time.Millisecond)))
	return nil
}
