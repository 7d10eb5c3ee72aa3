package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/internal/features"
	"github.com/kennydoit/fin-trade-craft/internal/pipelineconfig"
)

// stageFlags are the sweep flags shared by features and signals
type stageFlags struct {
	mode           string
	workers        int
	limit          int
	stalenessHours int
	init           bool
}

func (f *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", string(features.ModeIncremental), "full|incremental")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel entities (default NumCPU)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "max entities this run (0 = all)")
	cmd.Flags().IntVar(&f.stalenessHours, "staleness-hours", 0, "reprocess entities older than N hours (default from pipeline config)")
	cmd.Flags().BoolVar(&f.init, "init", false, "create missing watermarks first")
}

func (f *stageFlags) options(cfg *pipelineconfig.Config, group contracts.DatasetGroup) (features.RunOptions, error) {
	mode, err := features.ParseMode(f.mode)
	if err != nil {
		return features.RunOptions{}, err
	}
	if f.workers < 0 || f.limit < 0 || f.stalenessHours < 0 {
		return features.RunOptions{}, fmt.Errorf("--workers, --limit and --staleness-hours must not be negative")
	}
	staleness := cfg.Staleness(group)
	if f.stalenessHours > 0 {
		staleness = time.Duration(f.stalenessHours) * time.Hour
	}
	return features.RunOptions{
		Mode:      mode,
		Workers:   f.workers,
		Limit:     f.limit,
		Staleness: staleness,
		Init:      f.init,
	}, nil
}
