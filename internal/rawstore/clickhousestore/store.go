// Package clickhousestore implements the raw observation and catalog
// interfaces on ClickHouse. Observations live in a wide fact table keyed by
// (region_id, metric_id, scenario_id, ts); the catalog tables are small
// reference data.
package clickhousestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
)

type Config struct {
	Addr     string
	Database string
	Username string
	Password string

	MaxOpenConns int
	MaxIdleConns int
	DialTimeout  time.Duration
}

type Store struct {
	logger *slog.Logger
	conn   driver.Conn
	db     string
}

// New opens a pooled ClickHouse connection and verifies it with a ping.
func New(ctx context.Context, logger *slog.Logger, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("clickhouse address is required")
	}
	if cfg.Database == "" {
		cfg.Database = "climate"
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 16
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 4
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"prefer_column_name_to_alias": 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	logger.Info("clickhouse connection ready",
		"addr", cfg.Addr, "database", cfg.Database, "max_open_conns", cfg.MaxOpenConns)
	return &Store{logger: logger, conn: conn, db: cfg.Database}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}

// StreamObservations walks the entry's rows in [w.Start, w.End) in timestamp
// order, calling fn per row. Null samples are delivered with a nil Value.
func (s *Store) StreamObservations(ctx context.Context, entry model.CatalogEntry, w model.Window, fn func(model.RawObservation) error) error {
	q := fmt.Sprintf(`
		SELECT ts, value
		FROM %s.observations
		WHERE region_id = ? AND metric_id = ? AND scenario_id = ?
		  AND ts >= ? AND ts < ?
		ORDER BY ts`, s.db)

	rows, err := s.conn.Query(ctx, q,
		entry.RegionID, entry.MetricID, entry.ScenarioID, w.Start, w.End)
	if err != nil {
		return fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ts  time.Time
			val *float64
		)
		if err := rows.Scan(&ts, &val); err != nil {
			return fmt.Errorf("scan observation: %w", err)
		}
		o := model.RawObservation{
			RegionID:   entry.RegionID,
			MetricID:   entry.MetricID,
			ScenarioID: entry.ScenarioID,
			TS:         ts.UTC(),
			Value:      val,
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate observations: %w", err)
	}
	return nil
}

// LatestFingerprint aggregates server-side so staleness probes stay cheap
// relative to a full stream.
func (s *Store) LatestFingerprint(ctx context.Context, entry model.CatalogEntry, w model.Window) (model.Fingerprint, error) {
	q := fmt.Sprintf(`
		SELECT count(), max(ts)
		FROM %s.observations
		WHERE region_id = ? AND metric_id = ? AND scenario_id = ?
		  AND ts >= ? AND ts < ?`, s.db)

	var (
		count uint64
		maxTS time.Time
	)
	row := s.conn.QueryRow(ctx, q,
		entry.RegionID, entry.MetricID, entry.ScenarioID, w.Start, w.End)
	if err := row.Scan(&count, &maxTS); err != nil {
		return model.Fingerprint{}, fmt.Errorf("query fingerprint: %w", err)
	}
	if count == 0 {
		// max(ts) over zero rows is the epoch, not a real timestamp
		return model.Fingerprint{}, nil
	}
	return model.Fingerprint{Count: count, MaxTS: maxTS.UTC()}, nil
}

// Lookup resolves (region, metric, scenario) references against the catalog
// tables. References are codes, e.g. region "12", metric "tas_anomaly",
// scenario "ssp245".
func (s *Store) Lookup(ctx context.Context, regionRef, metricRef, scenarioRef string) (model.CatalogEntry, bool, error) {
	q := fmt.Sprintf(`
		SELECT r.id, m.id, sc.id, m.code, sc.code, m.unit
		FROM %[1]s.regions r, %[1]s.metrics m, %[1]s.scenarios sc
		WHERE r.code = ? AND m.code = ? AND sc.code = ?
		LIMIT 1`, s.db)

	var e model.CatalogEntry
	row := s.conn.QueryRow(ctx, q, regionRef, metricRef, scenarioRef)
	err := row.Scan(&e.RegionID, &e.MetricID, &e.ScenarioID, &e.MetricCode, &e.ScenarioCode, &e.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CatalogEntry{}, false, nil
	}
	if err != nil {
		return model.CatalogEntry{}, false, fmt.Errorf("lookup catalog triple: %w", err)
	}
	return e, true, nil
}

func (s *Store) Metrics(ctx context.Context) ([]model.MetricInfo, error) {
	q := fmt.Sprintf(`SELECT id, code, name, unit FROM %s.metrics ORDER BY code`, s.db)

	rows, err := s.conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []model.MetricInfo
	for rows.Next() {
		var m model.MetricInfo
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.Unit); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return out, nil
}

func (s *Store) Scenarios(ctx context.Context) ([]model.ScenarioInfo, error) {
	q := fmt.Sprintf(`SELECT id, code, name, description FROM %s.scenarios ORDER BY code`, s.db)

	rows, err := s.conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	var out []model.ScenarioInfo
	for rows.Next() {
		var sc model.ScenarioInfo
		if err := rows.Scan(&sc.ID, &sc.Code, &sc.Name, &sc.Description); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return out, nil
}

// YearBounds reports the observed data extent for a metric/scenario pair,
// across all regions.
func (s *Store) YearBounds(ctx context.Context, metricRef, scenarioRef string) (int, int, bool, error) {
	q := fmt.Sprintf(`
		SELECT count(), toYear(min(o.ts)), toYear(max(o.ts))
		FROM %[1]s.observations o
		JOIN %[1]s.metrics m ON m.id = o.metric_id
		JOIN %[1]s.scenarios sc ON sc.id = o.scenario_id
		WHERE m.code = ? AND sc.code = ?`, s.db)

	var (
		count    uint64
		min, max uint16
	)
	row := s.conn.QueryRow(ctx, q, metricRef, scenarioRef)
	if err := row.Scan(&count, &min, &max); err != nil {
		return 0, 0, false, fmt.Errorf("query year bounds: %w", err)
	}
	if count == 0 {
		return 0, 0, false, nil
	}
	return int(min), int(max), true, nil
}
