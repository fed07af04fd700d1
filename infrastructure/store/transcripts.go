package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

var _ ports.TranscriptCache = (*Store)(nil)

// GetTranscript implements ports.TranscriptCache.
func (s *Store) GetTranscript(ctx context.Context, itemID string, notBefore time.Time) (*domain.Item, bool, error) {
	var (
		title, thumb, transcript string
		duration                 int
	)
	query := s.sb.Select("title", "duration_seconds", "thumbnail_url", "transcript").
		From("transcript_cache").
		Where(sq.Eq{"item_id": itemID})
	if !notBefore.IsZero() {
		query = query.Where(sq.GtOrEq{"fetched_at": millis(notBefore)})
	}
	err := query.RunWith(s.db).QueryRowContext(ctx).Scan(&title, &duration, &thumb, &transcript)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get transcript %s: %w", itemID, err)
	}

	item := domain.NewItem(itemID, title, duration, transcript)
	item.ThumbnailURL = thumb
	return &item, true, nil
}

// PutTranscript implements ports.TranscriptCache.
func (s *Store) PutTranscript(ctx context.Context, item domain.Item) error {
	_, err := s.sb.Insert("transcript_cache").
		Columns("item_id", "title", "duration_seconds", "thumbnail_url", "transcript", "fetched_at").
		Values(item.ID, item.Title, item.DurationSeconds, item.ThumbnailURL, item.Transcript, millis(s.now())).
		Suffix("ON CONFLICT (item_id) DO UPDATE SET title = excluded.title, " +
			"duration_seconds = excluded.duration_seconds, thumbnail_url = excluded.thumbnail_url, " +
			"transcript = excluded.transcript, fetched_at = excluded.fetched_at").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("put transcript %s: %w", item.ID, err)
	}
	return nil
}
