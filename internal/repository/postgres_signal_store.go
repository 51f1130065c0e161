package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	"CoinRadar/pkg/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const signalColumns = `id, symbol, score, price, discovery_source, is_new, bonus_applied,
	signal_type, status, analysis, comment, created_at, feedback_at`

// PGSignalStore implements SignalStore on Postgres.
type PGSignalStore struct {
	pool *postgres.Pool
	now  func() time.Time
}

func NewPGSignalStore(pool *postgres.Pool) *PGSignalStore {
	return &PGSignalStore{pool: pool, now: time.Now}
}

func (s *PGSignalStore) CreateSignal(ctx context.Context, sig models.Signal) (string, error) {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.Status == "" {
		sig.Status = models.StatusActive
	}
	if sig.Type == "" {
		sig.Type = models.SignalTypeAuto
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = s.now()
	}
	if sig.Analysis == nil {
		sig.Analysis = []string{}
	}

	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Symbol, sig.Score, sig.Price, string(sig.DiscoverySource), sig.IsNew, sig.BonusApplied,
		string(sig.Type), string(sig.Status), sig.Analysis, sig.Comment, sig.CreatedAt, sig.FeedbackAt,
	)
	if err != nil {
		if postgres.IsDuplicateKey(err) {
			return "", fmt.Errorf("create signal %s: duplicate id", sig.ID)
		}
		return "", fmt.Errorf("create signal: %w", err)
	}
	return sig.ID, nil
}

func (s *PGSignalStore) GetSignal(ctx context.Context, id string) (models.Signal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1`, id)
	sig, err := scanSignal(row)
	if err != nil {
		if postgres.IsNotFound(err) || postgres.IsInvalidInput(err) {
			return models.Signal{}, models.ErrSignalNotFound
		}
		return models.Signal{}, fmt.Errorf("get signal: %w", err)
	}
	return sig, nil
}

func (s *PGSignalStore) FindActiveBySymbol(ctx context.Context, symbol string, since time.Time) (models.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE symbol = $1 AND status = 'active' AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	sig, err := scanSignal(s.pool.QueryRow(ctx, query, strings.ToUpper(symbol), since))
	if err != nil {
		if postgres.IsNotFound(err) {
			return models.Signal{}, models.ErrSignalNotFound
		}
		return models.Signal{}, fmt.Errorf("find active signal: %w", err)
	}
	return sig, nil
}

func (s *PGSignalStore) ListSignals(ctx context.Context, f models.SignalFilter) ([]models.Signal, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Symbol != "" {
		args = append(args, strings.ToUpper(f.Symbol))
		where = append(where, fmt.Sprintf("symbol = $%d", len(args)))
	}

	query := `SELECT ` + signalColumns + ` FROM signals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Signal, 0)
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list signals rows: %w", err)
	}
	return out, nil
}

// RecordFeedback applies the transition with a conditional update, so concurrent
// reports for one signal cannot both succeed.
func (s *PGSignalStore) RecordFeedback(ctx context.Context, id string, outcome models.SignalStatus, comment string, at time.Time) (models.Signal, error) {
	if _, err := models.StatusActive.Transition(outcome); err != nil {
		return models.Signal{}, err
	}

	query := `
		UPDATE signals
		SET status = $2, comment = $3, feedback_at = $4
		WHERE id = $1 AND status = 'active'
		RETURNING ` + signalColumns
	sig, err := scanSignal(s.pool.QueryRow(ctx, query, id, string(outcome), comment, at))
	if err == nil {
		return sig, nil
	}
	if !postgres.IsNotFound(err) && !postgres.IsInvalidInput(err) {
		return models.Signal{}, fmt.Errorf("record feedback: %w", err)
	}

	current, gerr := s.GetSignal(ctx, id)
	if gerr != nil {
		return models.Signal{}, gerr
	}
	return current, fmt.Errorf("%w: status %s", models.ErrSignalClosed, current.Status)
}

func (s *PGSignalStore) GetFeedbackStats(ctx context.Context, lookbackDays int) (models.FeedbackStats, error) {
	days := domrepo.NormalizeLookback(lookbackDays)
	stats := models.NewFeedbackStats(days)

	query := `
		SELECT discovery_source, is_new, status, COUNT(*)
		FROM signals
		WHERE created_at >= $1
		GROUP BY discovery_source, is_new, status
	`
	rows, err := s.pool.Query(ctx, query, s.now().AddDate(0, 0, -days))
	if err != nil {
		return stats, fmt.Errorf("feedback stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			src, status string
			isNew       bool
			n           int64
		)
		if err := rows.Scan(&src, &isNew, &status, &n); err != nil {
			return stats, fmt.Errorf("scan feedback stats: %w", err)
		}
		stats.Add(models.DiscoverySource(src), isNew, models.SignalStatus(status), int(n))
	}
	return stats, rows.Err()
}

func scanSignal(row pgx.Row) (models.Signal, error) {
	var (
		sig                  models.Signal
		src, typ, status, id string
	)
	err := row.Scan(&id, &sig.Symbol, &sig.Score, &sig.Price, &src, &sig.IsNew, &sig.BonusApplied,
		&typ, &status, &sig.Analysis, &sig.Comment, &sig.CreatedAt, &sig.FeedbackAt)
	if err != nil {
		return models.Signal{}, err
	}
	sig.ID = id
	sig.DiscoverySource = models.DiscoverySource(src)
	sig.Type = models.SignalType(typ)
	sig.Status = models.SignalStatus(status)
	return sig, nil
}

var _ domrepo.SignalStore = (*PGSignalStore)(nil)
