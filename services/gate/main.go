// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gate starts the AleutianGate pre-inference trust gate.
//
// The gate sits between intent parsing and inference: the orchestration
// layer POSTs every parsed query to /v1/verify and only lets the model
// answer when the gate says so. Refusing to start on an invalid catalog is
// deliberate — a gate with an unvalidated catalog is worse than no gate.
//
// # Environment Variables
//
//   - GATE_PORT: HTTP server port (default: 12230)
//   - GATE_CATALOG_PATH: source catalog YAML override (default: embedded)
//   - GATE_ALERTS_DB: path to the alerts SQLite database (optional)
//   - GATE_VERIFY_RPS: verify endpoint rate limit (default: 50)
//   - INFLUXDB_URL / INFLUXDB_TOKEN / INFLUXDB_ORG / INFLUXDB_BUCKET:
//     equipment telemetry backend (optional)
//   - WEAVIATE_SERVICE_URL: document index backend (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
//     (default: aleutian-otel-collector:4317)
//
// Backends left unconfigured degrade gracefully: their sources still
// resolve and are cited, but traversal actions against them record failed
// steps.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianGate/pkg/extensions"
	"github.com/AleutianAI/AleutianGate/services/gate/handlers"
	"github.com/AleutianAI/AleutianGate/services/gate/observability"
	"github.com/AleutianAI/AleutianGate/services/gate/provenance"
	"github.com/AleutianAI/AleutianGate/services/gate/registry"
	"github.com/AleutianAI/AleutianGate/services/gate/resolver"
	"github.com/AleutianAI/AleutianGate/services/gate/routes"
	"github.com/AleutianAI/AleutianGate/services/gate/traversal"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("gate-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// loadRegistry builds the sealed registry from the override path or the
// embedded catalog. Any failure is fatal: the gate must not serve with an
// unvalidated catalog.
func loadRegistry(catalogPath string) *registry.Registry {
	if catalogPath != "" {
		reg, err := registry.NewFromCatalogFile(catalogPath)
		if err != nil {
			log.Fatalf("FATAL: source catalog %s failed validation: %v", catalogPath, err)
		}
		slog.Info("Loaded source catalog from file", "path", catalogPath)
		return reg
	}
	reg, err := registry.NewFromEmbeddedCatalog()
	if err != nil {
		log.Fatalf("FATAL: embedded source catalog failed validation: %v", err)
	}
	slog.Info("Loaded embedded source catalog")
	return reg
}

// buildStores binds whatever backends the environment configures. Missing
// backends are logged and skipped, never fatal.
func buildStores() *traversal.Stores {
	stores := traversal.NewStores()

	if path := os.Getenv("GATE_ALERTS_DB"); path != "" {
		store, err := traversal.OpenSQLiteStore(path, traversal.SQLiteConfig{})
		if err != nil {
			slog.Error("Failed to open alerts database; alerts traversal degraded", "path", path, "error", err)
		} else {
			stores.Relational["alerts-db"] = store
			stores.Alerts["alerts-db"] = store
		}
	} else {
		slog.Info("GATE_ALERTS_DB not set; alerts traversal will record failed steps")
	}

	if influxURL := os.Getenv("INFLUXDB_URL"); influxURL != "" {
		client := influxdb2.NewClient(influxURL, os.Getenv("INFLUXDB_TOKEN"))
		store, err := traversal.NewInfluxMetricStore(
			client.QueryAPI(os.Getenv("INFLUXDB_ORG")),
			traversal.InfluxConfig{
				Bucket:      getEnvString("INFLUXDB_BUCKET", "telemetry"),
				Measurement: "equipment",
				EntityTag:   "device_id",
				Units: map[string]string{
					"temperature": "celsius",
					"pressure":    "psi",
					"vibration":   "mm_s",
				},
			})
		if err != nil {
			slog.Error("Failed to configure InfluxDB store", "error", err)
		} else {
			stores.Metrics["equipment-telemetry-db"] = store
		}
	} else {
		slog.Info("INFLUXDB_URL not set; telemetry traversal will record failed steps")
	}

	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL != "" && strings.Contains(weaviateURL, "http") {
		parsedURL, err := url.Parse(weaviateURL)
		if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
			slog.Warn("WEAVIATE_SERVICE_URL is invalid; document traversal degraded",
				"url", weaviateURL, "error", err)
		} else {
			client, err := weaviate.NewClient(weaviate.Config{
				Host:   parsedURL.Host,
				Scheme: parsedURL.Scheme,
			})
			if err != nil {
				slog.Error("Failed to create Weaviate client", "error", err)
			} else {
				index, err := traversal.NewWeaviateIndex(client, nil)
				if err != nil {
					slog.Error("Failed to configure Weaviate index", "error", err)
				} else {
					stores.Vector["document-index"] = index
				}
			}
		}
	} else {
		slog.Info("WEAVIATE_SERVICE_URL not set; document traversal will record failed steps")
	}

	return stores
}

// watchCatalog logs when the catalog file changes on disk. The sealed
// registry is immutable by design, so a change requires a restart; the
// watcher makes sure that fact lands in the logs instead of surprising an
// operator who edited the file and saw no effect.
func watchCatalog(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("Catalog watcher unavailable", "error", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		slog.Warn("Catalog watcher could not watch file", "path", path, "error", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					slog.Warn("Source catalog changed on disk; the running registry is sealed and a restart is required to apply it",
						"path", path, "op", event.Op.String())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Catalog watcher error", "error", err)
			}
		}
	}()
}

func main() {
	port := getEnvString("GATE_PORT", "12230")

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	catalogPath := os.Getenv("GATE_CATALOG_PATH")
	reg := loadRegistry(catalogPath)
	if catalogPath != "" {
		watchCatalog(catalogPath)
	}

	stores := buildStores()

	// FOSS default: discard audit events. Enterprise builds inject a sink.
	var audit extensions.AuditLogger = &extensions.NopAuditLogger{}

	rs, err := resolver.NewResolver(reg, traversal.NewEntityProbe(stores))
	if err != nil {
		log.Fatalf("FATAL: could not build resolver: %v", err)
	}
	gate, err := resolver.NewGate(rs, audit)
	if err != nil {
		log.Fatalf("FATAL: could not build gate: %v", err)
	}

	verifyRPS := getEnvInt("GATE_VERIFY_RPS", 50)
	deps := handlers.Deps{
		Gate:     gate,
		Registry: reg,
		Stores:   stores,
		Audit:    audit,
		Auditor:  provenance.NewGroundingAuditor(audit),
		Limiter:  rate.NewLimiter(rate.Limit(verifyRPS), verifyRPS*2),
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("gate-service"))
	routes.SetupRoutes(router, deps)

	slog.Info("Starting the gate server",
		"port", port,
		"sources", len(reg.SourceIDs()),
		"domains", len(reg.Domains()),
		"verify_rps", verifyRPS,
	)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
