// Package metric provides Prometheus-based metrics collection for the
// face's runtime, API client, and content pipeline.
//
// The package offers a centralized metrics registry managing both core
// face metrics (snapshot readiness, swap outcomes, operation counts,
// Twitter API traffic, toxicity checks) and custom metrics registered by
// individual components. The gateway exposes the registry in Prometheus
// exposition format through Handler.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: face-level metrics automatically registered (Metrics type)
//  2. Component Registry: extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Handler: exposition endpoint mounted by the gateway (Handler function)
//
// This separates infrastructure concerns (core metrics) from component
// concerns (custom metrics) while keeping a single exposition endpoint.
//
// # Basic Usage
//
// Setting up metrics collection:
//
//	registry := metric.NewMetricsRegistry()
//
//	// Record core face metrics
//	core := registry.CoreMetrics()
//	core.RecordReadyStatus(true)
//	core.RecordOperation("post", "ok", 1200*time.Millisecond)
//	core.RecordAPIRequest("tweets", "200", 340*time.Millisecond)
//
//	// Mount the exposition endpoint
//	mux.Handle("/metrics", metric.Handler(registry))
//
// # Core Metrics
//
// The registry automatically registers core metrics tracking:
//
//   - Snapshot lifecycle: kilroy_state_ready, kilroy_state_swaps_total,
//     kilroy_state_swap_duration_seconds
//   - Face operations: kilroy_face_operations_total,
//     kilroy_face_operation_duration_seconds, kilroy_face_posts_created_total,
//     kilroy_face_scrap_items_total, kilroy_face_watch_subscribers
//   - Twitter API traffic: kilroy_twitter_requests_total,
//     kilroy_twitter_request_duration_seconds, kilroy_twitter_rate_limited_total
//   - Content gating: kilroy_toxicity_checks_total
//
// Go runtime and process collectors are registered alongside the core set.
//
// # Component Metrics
//
// Components can register custom metrics through the registry:
//
//	hits := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "kilroy_toxicity_cache_hits_total",
//	    Help: "Total toxicity score cache hits",
//	})
//	err := registry.RegisterCounter("toxicity", "cache_hits_total", hits)
//
// Registration is tracked per component and metric name. Registering the
// same pair twice, or a collector that collides with one already known to
// Prometheus, returns an invalid-classified error rather than panicking.
//
// # Thread Safety
//
// All registry operations are safe for concurrent use. The underlying
// Prometheus types handle concurrent metric updates.
package metric
