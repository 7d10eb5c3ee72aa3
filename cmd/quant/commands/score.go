package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kennydoit/fin-trade-craft/internal/scoring"
	"github.com/kennydoit/fin-trade-craft/internal/signals"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score today's buy signals with the classifier and rank them",
	Long: `Loads the classifier artifact, checks its feature names against the
vector this build produces, scores the buy signals dated --as-of with
fundamentals lagged by the publication delay, and stores the top N.

Example:
  go run ./cmd/quant score --model models/lr.json
  go run ./cmd/quant score --model models/lr.json --as-of 2024-06-28 --top 10`,
	RunE: runScore,
}

var (
	scoreModel   string
	scoreAsOf    string
	scoreLagDays int
	scoreTop     int
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreModel, "model", "", "classifier artifact (default scoring.model_path)")
	scoreCmd.Flags().StringVar(&scoreAsOf, "as-of", "", "signal date to score (default newest signal date)")
	scoreCmd.Flags().IntVar(&scoreLagDays, "lag-days", -1, "fundamentals publication lag (default from pipeline config)")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 0, "recommendations kept (default from pipeline config)")
}

func runScore(cmd *cobra.Command, args []string) error {
	asOf, err := parseDateFlag("as-of", scoreAsOf)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	sc := a.pipeline.Scoring
	path := sc.ModelPath
	if scoreModel != "" {
		path = scoreModel
	}
	if path == "" {
		return errors.New("no model: pass --model or set scoring.model_path")
	}
	lag := sc.PublicationLagDays
	if scoreLagDays >= 0 {
		lag = scoreLagDays
	}
	top := sc.TopN
	if scoreTop > 0 {
		top = scoreTop
	}

	model, err := scoring.LoadLinearModel(path)
	if err != nil {
		return err
	}

	repo := a.scoringRepo()
	scorer, err := scoring.NewScorer(model, a.pipeline.Signals.Strategies, repo, repo,
		scoring.NewRanker(sc.Weights, top), lag, a.log)
	if err != nil {
		if errors.Is(err, scoring.ErrFeatureMismatch) {
			PrintError("Model feature names do not match this build; retrain or fix the strategy list")
		}
		return err
	}
	scorer = scorer.WithCache(a.cache)

	ctx, cancel := signalContext()
	defer cancel()

	if asOf.IsZero() {
		latest, err := signals.NewRepository(a.db.Pool).LatestDate(ctx)
		if err != nil {
			return err
		}
		if latest == nil {
			PrintWarning("No signal events stored yet")
			return nil
		}
		asOf = *latest
	}

	PrintHeader("Scoring",
		"As of", asOf.Format("2006-01-02"),
		"Model", model.Version(),
		"Lag", fmt.Sprintf("%d days", lag))

	result, err := scorer.Score(ctx, asOf)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	if len(result.Recommendations) == 0 {
		PrintWarning(fmt.Sprintf("No buy signals on %s", asOf.Format("2006-01-02")))
		return nil
	}

	widths := []int{4, 8, 20, 8, 8, 8, 9}
	PrintTableHeader([]string{"#", "SYMBOL", "STRATEGY", "PROB", "STRENGTH", "QUALITY", "COMPOSITE"}, widths)
	for _, r := range result.Recommendations {
		PrintTableRow([]string{
			fmt.Sprint(r.Rank),
			r.Symbol,
			r.Strategy,
			fmt.Sprintf("%.3f", r.Probability),
			fmt.Sprintf("%.3f", r.Strength),
			fmt.Sprintf("%.3f", r.Quality),
			fmt.Sprintf("%.3f", r.Composite),
		}, widths)
	}
	PrintSuccess(fmt.Sprintf("Run %s stored (%d of %d candidates) at %s",
		result.RunID, len(result.Recommendations), result.Candidates, time.Now().Format(time.RFC3339)))
	return nil
}
