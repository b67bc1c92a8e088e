package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"ais-trajectory/internal/ais"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LatestBatch selects the most recent import of each category.
const LatestBatch = "latest"

// Source loads position tables from the ais_positions table.
// An empty batch selects every row of the category.
type Source struct {
	db    *sql.DB
	batch string
}

func NewSource(db *sql.DB, batch string) *Source {
	return &Source{db: db, batch: strings.TrimSpace(batch)}
}

func (s *Source) Load(ctx context.Context, c ais.Category) (ais.Table, error) {
	batch := s.batch
	if batch == LatestBatch {
		b, err := ResolveLatestBatch(ctx, s.db, c)
		if err != nil {
			return ais.Table{}, fmt.Errorf("resolve latest batch: %w", err)
		}
		batch = b
	}
	return FetchFixes(ctx, s.db, c, batch)
}

// FetchFixes returns the position table of one category. Rows with NULL or
// non-finite fields are counted as rejected.
func FetchFixes(ctx context.Context, db *sql.DB, c ais.Category, batch string) (ais.Table, error) {
	q := `SELECT time, COALESCE(ship_type, ''), mmsi, latitude, longitude
FROM ais_positions WHERE category = $1`
	args := []any{string(c)}
	if batch != "" {
		q += ` AND batch_id = $2`
		args = append(args, batch)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return ais.Table{}, fmt.Errorf("query ais_positions: %w", err)
	}
	defer rows.Close()

	t := ais.Table{Category: c}
	for rows.Next() {
		var (
			ts       sql.NullTime
			shipType string
			mmsi     sql.NullInt64
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&ts, &shipType, &mmsi, &lat, &lon); err != nil {
			return ais.Table{}, err
		}
		if !ts.Valid || !mmsi.Valid || !finite(lat) || !finite(lon) {
			t.Rejected++
			continue
		}
		t.Fixes = append(t.Fixes, ais.Fix{
			Time:      ts.Time.UTC(),
			ShipType:  shipType,
			VesselID:  mmsi.Int64,
			Latitude:  lat.Float64,
			Longitude: lon.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return ais.Table{}, err
	}
	return t, nil
}

func finite(v sql.NullFloat64) bool {
	return v.Valid && !math.IsNaN(v.Float64) && !math.IsInf(v.Float64, 0)
}
