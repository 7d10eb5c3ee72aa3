package watermark

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kennydoit/fin-trade-craft/internal/contracts"
	"github.com/kennydoit/fin-trade-craft/pkg/database"
)

// PostgresStore keeps watermarks in source.extraction_watermarks. The group
// is always bound as a parameter value, never spliced into SQL.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a new watermark store
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const initializeGroupSQL = `
	INSERT INTO source.extraction_watermarks (symbol_id, table_name)
	SELECT ls.symbol_id, $1
	FROM source.listing_status ls
	ON CONFLICT (symbol_id, table_name) DO NOTHING`

// InitializeGroup creates missing watermark rows for every registry entity
func (s *PostgresStore) InitializeGroup(ctx context.Context, group contracts.DatasetGroup) (int64, error) {
	if !group.Valid() {
		return 0, fmt.Errorf("initialize group: unknown group %q", group)
	}

	tag, err := s.db.Exec(ctx, initializeGroupSQL, string(group))
	if err != nil {
		return 0, fmt.Errorf("initialize group %s: %w", group, err)
	}
	return tag.RowsAffected(), nil
}

const selectWorkSQL = `
	SELECT w.symbol_id, ls.symbol, ls.status, ls.delisting_date,
	       w.last_date_processed, w.last_successful_run
	FROM source.extraction_watermarks w
	JOIN source.listing_status ls ON ls.symbol_id = w.symbol_id
	WHERE w.table_name = $1
	  AND w.eligible
	  AND w.consecutive_failures < $2
	  AND (
	        w.last_successful_run IS NULL
	     OR w.last_successful_run < $3
	     OR ($4::date IS NOT NULL
	         AND (w.last_date_processed IS NULL OR w.last_date_processed < $4::date)
	         AND w.last_successful_run < $5)
	  )
	  AND (
	        ls.status = 'Active'
	     OR (ls.delisting_date IS NOT NULL
	         AND (w.last_date_processed IS NULL OR w.last_date_processed < ls.delisting_date))
	  )
	ORDER BY w.last_successful_run ASC NULLS FIRST, ls.symbol ASC
	LIMIT $6`

// SelectWork returns the ordered entities due for processing
func (s *PostgresStore) SelectWork(ctx context.Context, group contracts.DatasetGroup, opts SelectOptions) ([]contracts.WorkItem, error) {
	staleCutoff := opts.Now.Add(-opts.Staleness)

	var expected *time.Time
	recheckCutoff := opts.Now
	if opts.Gap != nil {
		p := dateOnly(opts.Gap.ExpectedPeriod)
		expected = &p
		recheckCutoff = opts.Now.Add(-opts.Gap.RecheckInterval)
	}

	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}

	rows, err := s.db.Query(ctx, selectWorkSQL,
		string(group),
		contracts.MaxConsecutiveFailures,
		staleCutoff,
		expected,
		recheckCutoff,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select work %s: %w", group, err)
	}
	defer rows.Close()

	items := make([]contracts.WorkItem, 0)
	for rows.Next() {
		var item contracts.WorkItem
		var status string
		if err := rows.Scan(
			&item.SymbolID,
			&item.Symbol,
			&status,
			&item.DelistingDate,
			&item.LastDateProcessed,
			&item.LastSuccessfulRun,
		); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		item.Status = contracts.ListingStatus(status)
		items = append(items, item)
	}

	return items, rows.Err()
}

const reportSuccessSQL = `
	UPDATE source.extraction_watermarks
	SET consecutive_failures = 0,
	    last_successful_run  = $3,
	    last_date_processed  = GREATEST(last_date_processed, $4::date),
	    updated_at           = NOW()
	WHERE symbol_id = $1
	  AND table_name = $2
	  AND eligible
	  AND consecutive_failures < $5`

const reportFailureSQL = `
	UPDATE source.extraction_watermarks
	SET consecutive_failures = consecutive_failures + 1,
	    eligible             = consecutive_failures + 1 < $3,
	    updated_at           = NOW()
	WHERE symbol_id = $1
	  AND table_name = $2
	  AND eligible`

// ReportOutcome records one processing attempt in a single statement
func (s *PostgresStore) ReportOutcome(ctx context.Context, symbolID int64, group contracts.DatasetGroup, outcome contracts.Outcome) error {
	var (
		rowsAffected int64
		err          error
	)

	if outcome.Success {
		var observed *time.Time
		if outcome.ObservedMax != nil {
			d := dateOnly(*outcome.ObservedMax)
			observed = &d
		}
		tag, execErr := s.db.Exec(ctx, reportSuccessSQL,
			symbolID, string(group), outcome.At, observed, contracts.MaxConsecutiveFailures)
		rowsAffected, err = tag.RowsAffected(), execErr
	} else {
		tag, execErr := s.db.Exec(ctx, reportFailureSQL,
			symbolID, string(group), contracts.MaxConsecutiveFailures)
		rowsAffected, err = tag.RowsAffected(), execErr
	}

	if err != nil {
		return fmt.Errorf("report outcome %s/%d: %w", group, symbolID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("report outcome %s/%d: %w", group, symbolID, ErrNotTracked)
	}
	return nil
}

const blacklistedSQL = `
	SELECT w.symbol_id, ls.symbol, w.last_date_processed, w.last_successful_run,
	       w.consecutive_failures, w.eligible
	FROM source.extraction_watermarks w
	JOIN source.listing_status ls ON ls.symbol_id = w.symbol_id
	WHERE w.table_name = $1
	  AND (NOT w.eligible OR w.consecutive_failures >= $2)
	ORDER BY w.consecutive_failures DESC, ls.symbol ASC`

// Blacklisted lists permanently backed-off entities with their failure counts
func (s *PostgresStore) Blacklisted(ctx context.Context, group contracts.DatasetGroup) ([]contracts.Watermark, error) {
	rows, err := s.db.Query(ctx, blacklistedSQL, string(group), contracts.MaxConsecutiveFailures)
	if err != nil {
		return nil, fmt.Errorf("query blacklist %s: %w", group, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.Watermark, error) {
		w := contracts.Watermark{Group: group}
		err := row.Scan(&w.SymbolID, &w.Symbol, &w.LastDateProcessed, &w.LastSuccessfulRun,
			&w.ConsecutiveFailures, &w.Eligible)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan blacklist %s: %w", group, err)
	}
	return out, nil
}

// last_date_processed is kept so the watermark still never regresses
const resetSQL = `
	UPDATE source.extraction_watermarks
	SET consecutive_failures = 0,
	    eligible             = TRUE,
	    last_successful_run  = NULL,
	    updated_at           = NOW()
	WHERE symbol_id = $1 AND table_name = $2`

// Reset clears the failure state so the entity is selected first next sweep
func (s *PostgresStore) Reset(ctx context.Context, symbolID int64, group contracts.DatasetGroup) error {
	tag, err := s.db.Exec(ctx, resetSQL, symbolID, string(group))
	if err != nil {
		return fmt.Errorf("reset %s/%d: %w", group, symbolID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reset %s/%d: %w", group, symbolID, ErrNotTracked)
	}
	return nil
}

const summarySQL = `
	SELECT table_name,
	       COUNT(*),
	       COUNT(*) FILTER (WHERE last_successful_run IS NULL),
	       COUNT(*) FILTER (WHERE NOT eligible OR consecutive_failures >= $1),
	       MAX(last_successful_run)
	FROM source.extraction_watermarks
	GROUP BY table_name
	ORDER BY table_name`

// Summary counts watermark states per group
func (s *PostgresStore) Summary(ctx context.Context) ([]GroupSummary, error) {
	rows, err := s.db.Query(ctx, summarySQL, contracts.MaxConsecutiveFailures)
	if err != nil {
		return nil, fmt.Errorf("query watermark summary: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GroupSummary, error) {
		var gs GroupSummary
		var group string
		err := row.Scan(&group, &gs.Tracked, &gs.NeverRun, &gs.Blacklisted, &gs.LastRun)
		gs.Group = contracts.DatasetGroup(group)
		return gs, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan watermark summary: %w", err)
	}
	return out, nil
}
