package postgres

import (
	"context"
	"fmt"
	"time"
)

// Dashboard queries are read-only and bounded: the latest rows per table,
// newest first.
const dashboardLimit = 20

type VitalRow struct {
	Time       time.Time
	DeviceID   string
	MetricType int
	Val        float64
}

type LocationRow struct {
	Time     time.Time
	DeviceID string
	Coords   string
	Accuracy *float64
}

type EventRow struct {
	Time        time.Time
	DeviceID    string
	EventType   string
	Label       *string
	DurationSec *int
	Metadata    *string
}

func (db *DB) LatestVitals(ctx context.Context) ([]VitalRow, error) {
	sql := fmt.Sprintf(
		"SELECT time, device_id, metric_type, val FROM sensor_vitals ORDER BY time DESC LIMIT %d",
		dashboardLimit)
	rows, err := db.Pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VitalRow
	for rows.Next() {
		var r VitalRow
		if err := rows.Scan(&r.Time, &r.DeviceID, &r.MetricType, &r.Val); err != nil {
			return nil, fmt.Errorf("scan vital row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) LatestLocations(ctx context.Context) ([]LocationRow, error) {
	sql := fmt.Sprintf(
		"SELECT time, device_id, ST_AsText(coords), accuracy FROM sensor_location ORDER BY time DESC LIMIT %d",
		dashboardLimit)
	rows, err := db.Pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LocationRow
	for rows.Next() {
		var r LocationRow
		if err := rows.Scan(&r.Time, &r.DeviceID, &r.Coords, &r.Accuracy); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) LatestEvents(ctx context.Context) ([]EventRow, error) {
	sql := fmt.Sprintf(
		"SELECT time, device_id, event_type, label, duration_sec, metadata FROM user_events ORDER BY time DESC LIMIT %d",
		dashboardLimit)
	rows, err := db.Pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.Time, &r.DeviceID, &r.EventType, &r.Label, &r.DurationSec, &r.Metadata); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
