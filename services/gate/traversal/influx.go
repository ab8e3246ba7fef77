// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traversal

import (
	"context"
	"fmt"
	"strings"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// =============================================================================
// InfluxDB Adapter
// =============================================================================

// InfluxQuerier is the slice of the InfluxDB query API the adapter uses.
// api.QueryAPI satisfies it; tests substitute a mock.
type InfluxQuerier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// InfluxMetricStore verifies metric values against an InfluxDB bucket.
//
// # Description
//
// Backs the equipment telemetry source. Reads are always latest-value
// lookups over a bounded range; the gate never scans history, it only
// confirms that a claimed reading has a real series behind it.
//
// # Thread Safety
//
// Safe for concurrent use; the InfluxDB client is concurrency-safe.
type InfluxMetricStore struct {
	queryAPI    InfluxQuerier
	bucket      string
	measurement string
	entityTag   string
	units       map[string]string
	lookback    string
}

// InfluxConfig configures an InfluxMetricStore.
//
// # Fields
//
//   - Bucket: the bucket to read from (required)
//   - Measurement: the measurement holding telemetry (default "telemetry")
//   - EntityTag: the tag identifying the device (default "device")
//   - Units: metric field name -> display unit, from the catalog schema
//   - Lookback: flux range start for reads (default "-24h")
type InfluxConfig struct {
	Bucket      string
	Measurement string
	EntityTag   string
	Units       map[string]string
	Lookback    string
}

// NewInfluxMetricStore wraps a query API obtained from
// influxdb2.NewClient(url, token).QueryAPI(org).
func NewInfluxMetricStore(queryAPI InfluxQuerier, cfg InfluxConfig) (*InfluxMetricStore, error) {
	if queryAPI == nil {
		return nil, fmt.Errorf("influx metric store requires a query API")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("influx metric store requires a bucket")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = "telemetry"
	}
	if cfg.EntityTag == "" {
		cfg.EntityTag = "device"
	}
	if cfg.Lookback == "" {
		cfg.Lookback = "-24h"
	}
	return &InfluxMetricStore{
		queryAPI:    queryAPI,
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		entityTag:   cfg.EntityTag,
		units:       cfg.Units,
		lookback:    cfg.Lookback,
	}, nil
}

// ReadMetric returns the latest value of a metric for an entity. A missing
// series is Found=false with a nil error.
func (s *InfluxMetricStore) ReadMetric(ctx context.Context, entity, metric string) (MetricReading, error) {
	if err := validFluxString(entity); err != nil {
		return MetricReading{}, err
	}
	if err := validFluxString(metric); err != nil {
		return MetricReading{}, err
	}

	query := fmt.Sprintf(`
        from(bucket: "%s")
          |> range(start: %s)
          |> filter(fn: (r) => r._measurement == "%s")
          |> filter(fn: (r) => r.%s == "%s")
          |> filter(fn: (r) => r._field == "%s")
          |> last()
    `, s.bucket, s.lookback, s.measurement, s.entityTag, entity, metric)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return MetricReading{}, fmt.Errorf("influx metric query failed: %w", err)
	}

	reading := MetricReading{Unit: s.units[metric]}
	if result != nil && result.Next() {
		if v, ok := toFloat(result.Record().Value()); ok {
			reading.Found = true
			reading.Value = v
		}
	}
	if result != nil && result.Err() != nil {
		return MetricReading{}, result.Err()
	}
	return reading, nil
}

// FindEntity reports whether the entity has any recorded series in the
// lookback window.
func (s *InfluxMetricStore) FindEntity(ctx context.Context, name string) (bool, string, error) {
	if err := validFluxString(name); err != nil {
		return false, "", err
	}

	query := fmt.Sprintf(`
        from(bucket: "%s")
          |> range(start: %s)
          |> filter(fn: (r) => r._measurement == "%s")
          |> filter(fn: (r) => r.%s == "%s")
          |> limit(n: 1)
    `, s.bucket, s.lookback, s.measurement, s.entityTag, name)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return false, "", fmt.Errorf("influx entity query failed: %w", err)
	}
	found := result != nil && result.Next()
	if result != nil && result.Err() != nil {
		return false, "", result.Err()
	}
	return found, s.measurement, nil
}

// validFluxString rejects values that could escape a flux string literal.
// Entity and metric names come from user text, so they are never trusted.
func validFluxString(v string) error {
	if strings.ContainsAny(v, `"\`) || strings.ContainsAny(v, "\n\r") {
		return fmt.Errorf("invalid characters in %q", v)
	}
	return nil
}

// toFloat normalizes the numeric types the InfluxDB client hands back.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

var _ MetricStore = (*InfluxMetricStore)(nil)
