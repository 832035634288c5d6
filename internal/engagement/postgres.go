package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serafis/podreco/internal/model"
)

// isRetriable reports whether err is a transient Postgres conflict worth
// retrying (serialization failure or deadlock).
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}

// withRetry executes fn, retrying on transient conflicts with jittered
// exponential backoff.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := range maxRetries + 1 {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}

// pendingWrite is one buffered RecordEngagement call awaiting flush.
type pendingWrite struct {
	id         string
	userID     string
	engagement model.Engagement
}

// maxBufferCapacity bounds buffered writes to prevent unbounded growth if
// Postgres is unreachable.
const maxBufferCapacity = 50_000

var (
	// ErrBufferDraining indicates Close/Drain was called; no new writes accepted.
	ErrBufferDraining = errors.New("engagement: buffer is draining")
	// ErrBufferAtCapacity indicates the in-memory write buffer hit its hard cap.
	ErrBufferAtCapacity = errors.New("engagement: buffer at capacity")
)

// PostgresStore implements Store with buffered, periodically-flushed
// writes, without a write-ahead log: engagement records are replaceable
// ranking telemetry, not an audit trail, so crash-durability machinery
// isn't worth carrying here (see DESIGN.md).
type PostgresStore struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	maxSize      int
	flushTimeout time.Duration

	mu      sync.Mutex
	pending []pendingWrite

	draining  atomic.Bool
	started   atomic.Bool
	drainOnce sync.Once
	flushCh   chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
}

// NewPostgresStore wraps an existing pool. Call Start to begin the
// background flush loop and EnsureSchema first to create the table.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger, maxSize int, flushTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		pool:         pool,
		logger:       logger,
		maxSize:      maxSize,
		flushTimeout: flushTimeout,
		flushCh:      make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// EnsureSchema creates the backing table if it doesn't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS engagements (
			id           uuid PRIMARY KEY,
			user_id      text NOT NULL,
			episode_id   text NOT NULL,
			type         text NOT NULL,
			occurred_at  timestamptz NOT NULL
		);
		CREATE INDEX IF NOT EXISTS engagements_user_id_idx ON engagements (user_id, occurred_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("engagement: ensure schema: %w", err)
	}
	return nil
}

// Start begins the background flush loop. Safe to call once.
func (s *PostgresStore) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Warn("engagement: Start called more than once, ignoring")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.flushLoop(loopCtx)
}

func (s *PostgresStore) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.flushUntilEmpty(flushCtx); err != nil {
				s.logger.Warn("engagement: final flush incomplete", "error", err)
			}
			cancel()
			close(s.done)
			return
		case <-ticker.C:
			_, _ = s.flushOnce(ctx)
		case <-s.flushCh:
			_, _ = s.flushOnce(ctx)
		}
	}
}

func (s *PostgresStore) flushUntilEmpty(ctx context.Context) error {
	backoff := 50 * time.Millisecond
	const maxBackoff = 2 * time.Second
	for {
		flushed, err := s.flushOnce(ctx)
		if err == nil {
			if !flushed {
				return nil
			}
			backoff = 50 * time.Millisecond
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("engagement: flush incomplete before deadline: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *PostgresStore) flushOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false, nil
	}
	batch := make([]pendingWrite, len(s.pending))
	copy(batch, s.pending)
	s.mu.Unlock()

	err := withRetry(ctx, 3, 100*time.Millisecond, func() error {
		rows := make([][]any, len(batch))
		for i, w := range batch {
			rows[i] = []any{w.id, w.userID, w.engagement.EpisodeID, w.engagement.Type, w.engagement.Timestamp}
		}
		_, copyErr := s.pool.CopyFrom(ctx, pgx.Identifier{"engagements"},
			[]string{"id", "user_id", "episode_id", "type", "occurred_at"},
			pgx.CopyFromRows(rows),
		)
		return copyErr
	})
	if err != nil {
		s.logger.Error("engagement: flush failed", "error", err, "batch_size", len(batch))
		return false, err
	}

	s.mu.Lock()
	if len(s.pending) >= len(batch) {
		s.pending = s.pending[len(batch):]
	} else {
		s.pending = nil
	}
	s.mu.Unlock()
	return true, nil
}

// Drain stops the flush loop after a final flush, waiting up to ctx's
// deadline.
func (s *PostgresStore) Drain(ctx context.Context) {
	s.drainOnce.Do(func() {
		s.draining.Store(true)
		if s.cancel != nil {
			s.cancel()
		}
	})
	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("engagement: drain timed out waiting for flush loop")
	}
}

func (s *PostgresStore) GetEngagementsForRanking(ctx context.Context, userID string, requestEngagements []model.Engagement) ([]model.Engagement, error) {
	if userID == "" {
		return requestEngagements, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT episode_id, type, occurred_at FROM engagements
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, userID, maxStoredEngagementsForRanking)
	if err != nil {
		return nil, fmt.Errorf("engagement: query for ranking: %w", err)
	}
	defer rows.Close()

	var stored []model.Engagement
	for rows.Next() {
		var e model.Engagement
		if err := rows.Scan(&e.EpisodeID, &e.Type, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("engagement: scan row: %w", err)
		}
		e.UserID = userID
		stored = append(stored, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement: rows: %w", err)
	}
	return resolveForRanking(userID, requestEngagements, stored), nil
}

// RecordEngagement buffers the write; it is durably persisted on the next
// flush (size- or timeout-triggered).
func (s *PostgresStore) RecordEngagement(ctx context.Context, userID string, e model.Engagement) error {
	if userID == "" {
		return nil
	}
	if s.draining.Load() {
		return ErrBufferDraining
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= maxBufferCapacity {
		return ErrBufferAtCapacity
	}
	e = stampTimestamp(e, time.Now().UTC())
	s.pending = append(s.pending, pendingWrite{id: uuid.NewString(), userID: userID, engagement: e})
	if len(s.pending) >= s.maxSize {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// DeleteEngagement issues a direct delete against Postgres; buffered
// writes for the same engagement (not yet flushed) cannot be targeted by
// ID, so callers that delete immediately after recording should expect a
// brief window where the record is still only in the buffer.
func (s *PostgresStore) DeleteEngagement(ctx context.Context, userID, engagementID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM engagements WHERE id = $1 AND user_id = $2`, engagementID, userID)
	if err != nil {
		return false, fmt.Errorf("engagement: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteAllEngagements(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM engagements WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("engagement: delete all: %w", err)
	}
	return nil
}
