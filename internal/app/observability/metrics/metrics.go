package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal         metric.Int64Counter
	HTTPRequestDuration       metric.Float64Histogram
	BookingsTotal             metric.Int64Counter
	BookedSeatsTotal          metric.Int64Counter
	ReleasedSeatsTotal        metric.Int64Counter
	ItineraryOverlapRejection metric.Int64Counter
	ReviewsSubmittedTotal     metric.Int64Counter
	SearchRequestsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once, from whatever MeterProvider is
// globally registered at the time. Without one, otel hands out no-op meters.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("tourbook")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.BookingsTotal, err = meter.Int64Counter(
			"bookings_total",
			metric.WithDescription("Reservation attempts by outcome"),
			metric.WithUnit("{booking}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create bookings_total: %v", err)
		}

		m.BookedSeatsTotal, err = meter.Int64Counter(
			"booked_seats_total",
			metric.WithDescription("Seats taken from schedule capacity"),
			metric.WithUnit("{seat}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create booked_seats_total: %v", err)
		}

		m.ReleasedSeatsTotal, err = meter.Int64Counter(
			"released_seats_total",
			metric.WithDescription("Seats returned to schedule capacity by cancellations"),
			metric.WithUnit("{seat}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create released_seats_total: %v", err)
		}

		m.ItineraryOverlapRejection, err = meter.Int64Counter(
			"itinerary_overlap_rejections_total",
			metric.WithDescription("Itinerary items rejected for overlapping an existing slot"),
			metric.WithUnit("{item}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_overlap_rejections_total: %v", err)
		}

		m.ReviewsSubmittedTotal, err = meter.Int64Counter(
			"reviews_submitted_total",
			metric.WithDescription("Reviews created or updated"),
			metric.WithUnit("{review}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create reviews_submitted_total: %v", err)
		}

		m.SearchRequestsTotal, err = meter.Int64Counter(
			"search_requests_total",
			metric.WithDescription("Total number of geospatial POI searches"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_requests_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, initialising them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
