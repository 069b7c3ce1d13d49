package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	JourneysStartedTotal    metric.Int64Counter
	JourneysCompletedTotal  metric.Int64Counter
	JourneysCancelledTotal  metric.Int64Counter
	CoordinatesTrackedTotal metric.Int64Counter
	TrackBatchSize          metric.Int64Histogram
	BadgesGrantedTotal      metric.Int64Counter
	TrackImageFailuresTotal metric.Int64Counter
	DBQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("trailtrace")
		m := &AppMetrics{}

		m.JourneysStartedTotal = mustCounter(meter, "journeys_started_total",
			"Total number of journey recordings started", "{journey}")
		m.JourneysCompletedTotal = mustCounter(meter, "journeys_completed_total",
			"Total number of journeys finalized as completed", "{journey}")
		m.JourneysCancelledTotal = mustCounter(meter, "journeys_cancelled_total",
			"Total number of journeys finalized as cancelled", "{journey}")
		m.CoordinatesTrackedTotal = mustCounter(meter, "coordinates_tracked_total",
			"Total number of GPS samples appended to journeys", "{sample}")
		m.BadgesGrantedTotal = mustCounter(meter, "badges_granted_total",
			"Total number of badges granted", "{badge}")
		m.TrackImageFailuresTotal = mustCounter(meter, "track_image_failures_total",
			"Total number of best-effort track image failures", "{failure}")
		m.DBQueryErrorsTotal = mustCounter(meter, "db_query_errors_total",
			"Total number of database query errors", "{error}")

		var err error
		m.TrackBatchSize, err = meter.Int64Histogram(
			"track_batch_size",
			metric.WithDescription("Number of samples per track flush received"),
			metric.WithUnit("{sample}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create track_batch_size: %v", err)
		}

		appMetrics = m
	})
}

func mustCounter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
