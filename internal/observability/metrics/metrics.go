package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking pipeline.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	syncTotal         *prometheus.CounterVec
	availabilityTotal *prometheus.CounterVec
	notifyTotal       *prometheus.CounterVec
	erpLatency        *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grooming",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Booking creation attempts by terminal stage",
		}, []string{"stage"}),
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grooming",
			Subsystem: "erp",
			Name:      "sync_total",
			Help:      "ERP sync outcomes",
		}, []string{"outcome"}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grooming",
			Subsystem: "erp",
			Name:      "availability_checks_total",
			Help:      "Availability check results, including fail-open",
		}, []string{"result"}),
		notifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grooming",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Confirmation notifications by channel and status",
		}, []string{"channel", "status"}),
		erpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "grooming",
			Subsystem: "erp",
			Name:      "call_latency_seconds",
			Help:      "Latency of ERP RPC calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model", "method"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.syncTotal, m.availabilityTotal, m.notifyTotal, m.erpLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(stage string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(stage).Inc()
}

func (m *BookingMetrics) ObserveSync(outcome string) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveAvailability(result string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.notifyTotal.WithLabelValues(channel, status).Inc()
}

func (m *BookingMetrics) ObserveERPCall(model, method string, seconds float64) {
	if m == nil {
		return
	}
	m.erpLatency.WithLabelValues(model, method).Observe(seconds)
}
