package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/sensing-api/internal/domain"
)

// dbtx is the slice of pgx.Tx the insert helpers need, narrowed so tests can
// fake it.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// txer adds the transaction lifetime to dbtx; pgx.Tx satisfies it.
type txer interface {
	dbtx
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Writer struct {
	db *DB
}

func NewWriter(db *DB) *Writer { return &Writer{db: db} }

// IngestBatch persists one batch: device upsert, then one multi-row insert
// per non-empty reading group, all on a single pooled connection inside a
// single transaction. Any failure rolls back every group; rows exist in all
// destination tables or in none. Returns the number of rows inserted.
func (w *Writer) IngestBatch(ctx context.Context, b domain.Batch) (int64, error) {
	conn, err := w.db.Pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	return ingestTx(ctx, tx, b)
}

// ingestTx runs the upsert and grouped inserts on an open transaction,
// committing on success and rolling back on any failure.
func ingestTx(ctx context.Context, tx txer, b domain.Batch) (int64, error) {
	defer func() { _ = tx.Rollback(ctx) }() // no-op once committed

	// The device row must exist before any reading rows reference it.
	if err := ensureDevice(ctx, tx, b.Metadata); err != nil {
		return 0, err
	}

	vitals, locations, events := domain.Classify(b.Data)

	var total int64
	n, err := insertVitals(ctx, tx, b.Metadata.DeviceID, vitals)
	if err != nil {
		return 0, err
	}
	total += n

	n, err = insertLocations(ctx, tx, b.Metadata.DeviceID, locations)
	if err != nil {
		return 0, err
	}
	total += n

	n, err = insertEvents(ctx, tx, b.Metadata.DeviceID, events)
	if err != nil {
		return 0, err
	}
	total += n

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// ensureDevice registers a first-seen device. A pre-existing row is left
// untouched, so last_sync keeps the first contact time.
func ensureDevice(ctx context.Context, tx dbtx, m domain.Metadata) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO devices (device_id, user_id, model_name, last_sync)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (device_id) DO NOTHING`,
		m.DeviceID, m.EffectiveUserID(), nullableString(m.ModelName))
	if err != nil {
		return fmt.Errorf("ensure device: %w", err)
	}
	return nil
}

func insertVitals(ctx context.Context, tx dbtx, deviceID string, vitals []domain.Vital) (int64, error) {
	if len(vitals) == 0 {
		return 0, nil
	}
	placeholders := make([]string, 0, len(vitals))
	args := make([]any, 0, len(vitals)*4)
	for i, v := range vitals {
		placeholders = append(placeholders, rowPlaceholder(i*4, "$%d,$%d,$%d,$%d"))
		args = append(args, v.Time, deviceID, v.Code, v.Val)
	}
	sql := "INSERT INTO sensor_vitals (time, device_id, metric_type, val) VALUES " +
		strings.Join(placeholders, ",")
	ct, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert vitals: %w", err)
	}
	return ct.RowsAffected(), nil
}

func insertLocations(ctx context.Context, tx dbtx, deviceID string, locations []domain.Gps) (int64, error) {
	if len(locations) == 0 {
		return 0, nil
	}
	placeholders := make([]string, 0, len(locations))
	args := make([]any, 0, len(locations)*4)
	for i, g := range locations {
		placeholders = append(placeholders, rowPlaceholder(i*4, "$%d,$%d,ST_GeogFromText($%d),$%d"))
		args = append(args, g.Time, deviceID, pointWKT(g.Lon, g.Lat), g.Acc)
	}
	sql := "INSERT INTO sensor_location (time, device_id, coords, accuracy) VALUES " +
		strings.Join(placeholders, ",")
	ct, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert locations: %w", err)
	}
	return ct.RowsAffected(), nil
}

func insertEvents(ctx context.Context, tx dbtx, deviceID string, events []domain.Event) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*5)
	for i, e := range events {
		meta := "{}"
		if e.Metadata != nil {
			b, _ := json.Marshal(e.Metadata)
			meta = string(b)
		}
		placeholders = append(placeholders, rowPlaceholder(i*5, "$%d,$%d,$%d,$%d,$%d"))
		args = append(args, e.Time, deviceID, e.Label, e.ValText, meta)
	}
	sql := "INSERT INTO user_events (time, device_id, event_type, label, metadata) VALUES " +
		strings.Join(placeholders, ",")
	ct, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert events: %w", err)
	}
	return ct.RowsAffected(), nil
}

// pointWKT renders a well-known-text POINT in lon/lat order, as
// ST_GeogFromText expects.
func pointWKT(lon, lat float64) string {
	return "POINT(" + strconv.FormatFloat(lon, 'f', -1, 64) + " " +
		strconv.FormatFloat(lat, 'f', -1, 64) + ")"
}

// rowPlaceholder renders one "($n,$n+1,...)" group with placeholder numbering
// starting after offset args.
func rowPlaceholder(offset int, format string) string {
	nums := make([]any, strings.Count(format, "%d"))
	for i := range nums {
		nums[i] = offset + i + 1
	}
	return "(" + fmt.Sprintf(format, nums...) + ")"
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
