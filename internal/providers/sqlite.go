package providers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/serafis/podreco/internal/model"
)

// SQLiteProvider is the document-store-backed Episode Provider: a paginated
// query path over a single episodes table, rather than the file provider's
// full-catalog-in-RAM approach. Nested fields (scores, series, categories)
// are stored as JSON columns, queried back and unmarshalled per row.
type SQLiteProvider struct {
	db *sql.DB
}

// OpenSQLiteProvider opens (or creates) the episodes database at dsn, a
// path modernc.org/sqlite accepts (e.g. "file:episodes.db?_pragma=journal_mode(WAL)").
func OpenSQLiteProvider(dsn string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("providers: open sqlite %q: %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("providers: ping sqlite %q: %w", dsn, err)
	}
	p := &SQLiteProvider{db: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *SQLiteProvider) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS episodes (
			id             TEXT PRIMARY KEY,
			content_id     TEXT,
			title          TEXT NOT NULL,
			published_at   INTEGER NOT NULL,
			key_insight    TEXT,
			scores_json    TEXT NOT NULL,
			series_json    TEXT NOT NULL,
			categories_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS episodes_content_id_idx ON episodes (content_id);
		CREATE INDEX IF NOT EXISTS episodes_published_at_idx ON episodes (published_at);
	`)
	if err != nil {
		return fmt.Errorf("providers: create episodes schema: %w", err)
	}
	return nil
}

// Upsert writes one episode row, for ingestion pipelines that populate the
// document store incrementally.
func (p *SQLiteProvider) Upsert(ctx context.Context, ep model.Episode) error {
	scores, err := json.Marshal(ep.Scores)
	if err != nil {
		return fmt.Errorf("providers: marshal scores: %w", err)
	}
	series, err := json.Marshal(ep.Series)
	if err != nil {
		return fmt.Errorf("providers: marshal series: %w", err)
	}
	categories, err := json.Marshal(ep.Categories)
	if err != nil {
		return fmt.Errorf("providers: marshal categories: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO episodes (id, content_id, title, published_at, key_insight, scores_json, series_json, categories_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_id = excluded.content_id,
			title = excluded.title,
			published_at = excluded.published_at,
			key_insight = excluded.key_insight,
			scores_json = excluded.scores_json,
			series_json = excluded.series_json,
			categories_json = excluded.categories_json
	`, ep.ID, nullable(ep.ContentID), ep.Title, ep.PublishedAt.Unix(), nullable(ep.KeyInsight), string(scores), string(series), string(categories))
	if err != nil {
		return fmt.Errorf("providers: upsert episode %q: %w", ep.ID, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (p *SQLiteProvider) GetEpisodes(ctx context.Context, q Query) ([]model.Episode, error) {
	if len(q.EpisodeIDs) > 0 {
		return p.getByIDs(ctx, q.EpisodeIDs)
	}

	query := `SELECT id, content_id, title, published_at, key_insight, scores_json, series_json, categories_json FROM episodes WHERE 1=1`
	var args []any
	if q.Since != nil {
		query += ` AND published_at >= ?`
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		query += ` AND published_at <= ?`
		args = append(args, *q.Until)
	}
	query += ` ORDER BY published_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
		if q.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, q.Offset)
		}
	} else if q.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, q.Offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("providers: query episodes: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

func (p *SQLiteProvider) getByIDs(ctx context.Context, ids []string) ([]model.Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, content_id, title, published_at, key_insight, scores_json, series_json, categories_json
		FROM episodes WHERE id IN (%s) OR content_id IN (%s)`, join(placeholders), join(placeholders))
	rows, err := p.db.QueryContext(ctx, query, append(append([]any{}, args...), args...)...)
	if err != nil {
		return nil, fmt.Errorf("providers: query episodes by id: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

func join(parts []string) string {
	out := ""
	for i, s := range parts {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func (p *SQLiteProvider) GetEpisode(ctx context.Context, idOrContentID string) (model.Episode, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, content_id, title, published_at, key_insight, scores_json, series_json, categories_json
		FROM episodes WHERE id = ? OR content_id = ? LIMIT 1
	`, idOrContentID, idOrContentID)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Episode{}, ErrEpisodeNotFound
	}
	if err != nil {
		return model.Episode{}, fmt.Errorf("providers: get episode %q: %w", idOrContentID, err)
	}
	return ep, nil
}

func (p *SQLiteProvider) GetEpisodeByContentIDMap(ctx context.Context) (map[string]model.Episode, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, content_id, title, published_at, key_insight, scores_json, series_json, categories_json
		FROM episodes WHERE content_id IS NOT NULL AND content_id != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("providers: query content-id map: %w", err)
	}
	defer rows.Close()
	episodes, err := scanEpisodes(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Episode, len(episodes))
	for _, ep := range episodes {
		out[ep.ContentID] = ep
	}
	return out, nil
}

func (p *SQLiteProvider) Close() error { return p.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (model.Episode, error) {
	var (
		ep                                     model.Episode
		contentID, keyInsight                  sql.NullString
		publishedAtUnix                        int64
		scoresJSON, seriesJSON, categoriesJSON string
	)
	if err := row.Scan(&ep.ID, &contentID, &ep.Title, &publishedAtUnix, &keyInsight, &scoresJSON, &seriesJSON, &categoriesJSON); err != nil {
		return model.Episode{}, err
	}
	ep.ContentID = contentID.String
	ep.KeyInsight = keyInsight.String
	ep.PublishedAt = time.Unix(publishedAtUnix, 0).UTC()
	if err := json.Unmarshal([]byte(scoresJSON), &ep.Scores); err != nil {
		return model.Episode{}, fmt.Errorf("providers: unmarshal scores for %q: %w", ep.ID, err)
	}
	if err := json.Unmarshal([]byte(seriesJSON), &ep.Series); err != nil {
		return model.Episode{}, fmt.Errorf("providers: unmarshal series for %q: %w", ep.ID, err)
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &ep.Categories); err != nil {
		return model.Episode{}, fmt.Errorf("providers: unmarshal categories for %q: %w", ep.ID, err)
	}
	return ep, nil
}

func scanEpisodes(rows *sql.Rows) ([]model.Episode, error) {
	var out []model.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}
