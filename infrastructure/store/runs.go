package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

var _ ports.RunStore = (*Store)(nil)

// CreateRun inserts a run in the processing state.
func (s *Store) CreateRun(ctx context.Context, runID string, locators []string) error {
	raw, err := json.Marshal(nonNilStrings(locators))
	if err != nil {
		return err
	}
	_, err = s.sb.Insert("runs").
		Columns("id", "status", "locators", "created_at").
		Values(runID, string(domain.RunProcessing), string(raw), millis(s.now())).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	return nil
}

// CompleteRun stores the report's ranked items and failures and marks the run
// completed. Runs that were never created are inserted.
func (s *Store) CompleteRun(ctx context.Context, report *domain.RunReport) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.sb.Insert("runs").
			Columns("id", "status", "summary", "created_at", "completed_at").
			Values(report.RunID, string(domain.RunCompleted), report.Summary,
				millis(report.StartedAt), millis(report.CompletedAt)).
			Suffix("ON CONFLICT (id) DO UPDATE SET status = excluded.status, " +
				"summary = excluded.summary, completed_at = excluded.completed_at").
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return err
		}

		if len(report.Items) > 0 {
			insert := s.sb.Insert("ranked_items").Columns(
				"run_id", "item_id", "title", "rank", "tier", "composite",
				"density_score", "redundancy_score", "title_relevance_score", "originality_score",
				"degraded", "detail")
			for _, it := range report.Items {
				detail, err := json.Marshal(it)
				if err != nil {
					return err
				}
				insert = insert.Values(report.RunID, it.Item.ID, it.Item.Title, it.Rank, string(it.Tier),
					it.Composite, it.Density.Score, it.Redundancy.Score, it.TitleRelevance.Score,
					it.Originality.Score, it.Degraded(), string(detail))
			}
			if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
				return err
			}
		}

		return s.insertFailures(ctx, tx, report.RunID, report.Failures)
	})
	if err != nil {
		return fmt.Errorf("complete run %s: %w", report.RunID, err)
	}
	return nil
}

// FailRun marks the run failed with the cause's message.
func (s *Store) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := millis(s.now())
	_, err := s.sb.Insert("runs").
		Columns("id", "status", "error", "created_at", "completed_at").
		Values(runID, string(domain.RunFailed), msg, now, now).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = excluded.status, " +
			"error = excluded.error, completed_at = excluded.completed_at").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("fail run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) insertFailures(ctx context.Context, tx *sql.Tx, runID string, failures []domain.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	insert := s.sb.Insert("run_failures").
		Columns("run_id", "position", "kind", "item_id", "locator", "dimension", "attempts", "message")
	for i, f := range failures {
		insert = insert.Values(runID, i, string(f.Kind), f.ItemID, f.Locator, string(f.Dimension), f.Attempts, f.Message)
	}
	_, err := insert.RunWith(tx).ExecContext(ctx)
	return err
}

// GetRun returns the run with its items ordered by rank and its failures in
// the order they were recorded.
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	var (
		rec         domain.RunRecord
		status      string
		locators    string
		createdAt   int64
		completedAt sql.NullInt64
	)
	err := s.sb.Select("id", "status", "locators", "summary", "error", "created_at", "completed_at").
		From("runs").
		Where(sq.Eq{"id": runID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&rec.ID, &status, &locators, &rec.Summary, &rec.Error, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	rec.Status = domain.RunStatus(status)
	rec.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		rec.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(locators), &rec.Locators); err != nil {
		return nil, fmt.Errorf("decode locators of run %s: %w", runID, err)
	}

	if rec.Items, err = s.rankedItems(ctx, runID); err != nil {
		return nil, err
	}
	if rec.Failures, err = s.failures(ctx, runID); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) rankedItems(ctx context.Context, runID string) ([]domain.StoredItem, error) {
	rows, err := s.sb.Select("item_id", "title", "rank", "tier", "composite",
		"density_score", "redundancy_score", "title_relevance_score", "originality_score", "degraded").
		From("ranked_items").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("rank").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items of run %s: %w", runID, err)
	}
	defer rows.Close()

	items := []domain.StoredItem{}
	for rows.Next() {
		var (
			it   domain.StoredItem
			tier string
		)
		if err := rows.Scan(&it.ItemID, &it.Title, &it.Rank, &tier, &it.Composite,
			&it.Density, &it.Redundancy, &it.TitleRelevance, &it.Originality, &it.Degraded); err != nil {
			return nil, err
		}
		it.Tier = domain.Tier(tier)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) failures(ctx context.Context, runID string) ([]domain.Failure, error) {
	rows, err := s.sb.Select("kind", "item_id", "locator", "dimension", "attempts", "message").
		From("run_failures").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list failures of run %s: %w", runID, err)
	}
	defer rows.Close()

	failures := []domain.Failure{}
	for rows.Next() {
		var (
			f         domain.Failure
			kind, dim string
		)
		if err := rows.Scan(&kind, &f.ItemID, &f.Locator, &dim, &f.Attempts, &f.Message); err != nil {
			return nil, err
		}
		f.Kind = domain.FailureKind(kind)
		f.Dimension = domain.Dimension(dim)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
