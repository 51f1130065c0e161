package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	pkgch "CoinRadar/pkg/clickhouse"
	applogger "CoinRadar/pkg/logger"
)

const (
	pricePointsTable        = "price_points"
	indicatorSnapshotsTable = "indicator_snapshots"
	insertChunkSize         = 2000
)

// ClickHouseSchema returns the DDL for the time-series tables in database db.
func ClickHouseSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol      LowCardinality(String),
			captured_at DateTime64(3, 'UTC'),
			price       Float64,
			volume      Float64,
			market_cap  Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, captured_at)
		TTL toDateTime(captured_at) + INTERVAL 400 DAY`, db, pricePointsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol         LowCardinality(String),
			computed_at    DateTime64(3, 'UTC'),
			points         UInt32,
			sma20          Float64,
			ema12          Float64,
			ema26          Float64,
			rsi            Float64,
			macd           Float64,
			macd_signal    Float64,
			macd_histogram Float64,
			volume_sma20   Float64
		) ENGINE = MergeTree
		ORDER BY (symbol, computed_at)
		TTL toDateTime(computed_at) + INTERVAL 90 DAY`, db, indicatorSnapshotsTable),
	}
}

// CHPriceStore keeps price history and indicator audits in ClickHouse.
// Rows for the same (symbol, captured_at) collapse via ReplacingMergeTree; reads use FINAL.
type CHPriceStore struct {
	db  *sql.DB
	dbn string
	now func() time.Time
	l   *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client, l *applogger.Logger) *CHPriceStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPriceStore{db: ch.DB(), dbn: ch.Database(), now: time.Now, l: l}
}

func (s *CHPriceStore) table(name string) string { return s.dbn + "." + name }

func (s *CHPriceStore) GetHistory(ctx context.Context, symbol string, lookbackDays int) ([]models.PricePoint, error) {
	since := s.now().UTC().AddDate(0, 0, -domrepo.NormalizeLookback(lookbackDays))
	q := fmt.Sprintf(`
		SELECT symbol, captured_at, price, volume, market_cap
		FROM %s FINAL
		WHERE symbol = ? AND captured_at >= ?
		ORDER BY captured_at ASC`, s.table(pricePointsTable))

	rows, err := s.db.QueryContext(ctx, q, strings.ToUpper(symbol), since)
	if err != nil {
		s.l.Error("clickhouse get_history query error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, 256)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Symbol, &p.CapturedAt, &p.Price, &p.Volume, &p.MarketCap); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHPriceStore) AppendPricePoint(ctx context.Context, p models.PricePoint) error {
	return s.AppendPricePoints(ctx, []models.PricePoint{p})
}

// AppendPricePoints inserts in multi-row chunks. Points without symbol or timestamp are skipped.
func (s *CHPriceStore) AppendPricePoints(ctx context.Context, points []models.PricePoint) error {
	for start := 0; start < len(points); start += insertChunkSize {
		end := min(start+insertChunkSize, len(points))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, p := range points[start:end] {
			if p.Symbol == "" || p.CapturedAt.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, strings.ToUpper(p.Symbol), p.CapturedAt.UTC(), p.Price, p.Volume, p.MarketCap)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, captured_at, price, volume, market_cap) VALUES %s",
			s.table(pricePointsTable), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("append price points: %w", err)
		}
	}
	return nil
}

func (s *CHPriceStore) RecordIndicators(ctx context.Context, snaps []models.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	values := make([]string, 0, len(snaps))
	args := make([]interface{}, 0, len(snaps)*11)
	for _, sn := range snaps {
		ind := sn.Indicators
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, sn.Symbol, sn.ComputedAt.UTC(), uint32(sn.Points),
			ind.SMA20, ind.EMA12, ind.EMA26, ind.RSI, ind.MACD, ind.MACDSignal, ind.MACDHistogram, ind.VolumeSMA20)
	}
	q := fmt.Sprintf(`INSERT INTO %s (symbol, computed_at, points, sma20, ema12, ema26, rsi, macd, macd_signal, macd_histogram, volume_sma20) VALUES %s`,
		s.table(indicatorSnapshotsTable), strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("record indicators: %w", err)
	}
	return nil
}

var (
	_ domrepo.PriceStore     = (*CHPriceStore)(nil)
	_ domrepo.IndicatorAudit = (*CHPriceStore)(nil)
)
