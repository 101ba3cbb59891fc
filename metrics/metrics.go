package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DetectionsTotal counts recognized-face detection events after the
	// unknown filter, before debounce.
	DetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smartguard",
		Name:      "detections_total",
		Help:      "Recognized face detection events received by the session controller.",
	})

	// MarkedTotal counts attendance rows written.
	MarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smartguard",
		Name:      "attendance_marked_total",
		Help:      "Attendance records persisted.",
	})

	// CommitsTotal counts teacher-triggered session commits.
	CommitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smartguard",
		Name:      "session_commits_total",
		Help:      "Attendance sessions committed by a teacher detection.",
	})

	// NotificationsSentTotal counts guardian emails delivered to the
	// transport without error.
	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smartguard",
		Name:      "notifications_sent_total",
		Help:      "Guardian notification emails sent.",
	})

	// NotificationFailuresTotal counts guardian emails the transport
	// rejected.
	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smartguard",
		Name:      "notification_failures_total",
		Help:      "Guardian notification emails that failed to send.",
	})

	// JobsTotal counts background jobs by terminal status.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartguard",
		Name:      "jobs_total",
		Help:      "Background jobs finished, by status.",
	}, []string{"type", "status"})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
