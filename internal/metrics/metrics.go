package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	FlowAuthentication = "authentication"
	FlowAuthorization  = "authorization"

	OutcomeOK = "ok"
)

type Metrics struct {
	AuthorizationOutcomes  *prometheus.CounterVec
	VerifierPolls          *prometheus.CounterVec
	PresentationRejections *prometheus.CounterVec
	PresentationWait       prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthorizationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rssp_authorization_outcomes_total",
			Help: "Completed authentication and authorization flows by error code",
		}, []string{"flow", "code"}),
		VerifierPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rssp_verifier_polls_total",
			Help: "Polls of the verifier wallet-response endpoint by HTTP status",
		}, []string{"status"}),
		PresentationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rssp_presentation_rejections_total",
			Help: "Presentations rejected by the validator by category",
		}, []string{"reason"}),
		PresentationWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rssp_presentation_wait_seconds",
			Help:    "Time spent waiting for the wallet presentation",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
}

// ObserveOutcome counts a finished flow. code is OutcomeOK on success.
func (m *Metrics) ObserveOutcome(flow, code string) {
	m.AuthorizationOutcomes.WithLabelValues(flow, code).Inc()
}

func (m *Metrics) ObservePoll(status int) {
	m.VerifierPolls.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveRejection(reason string) {
	m.PresentationRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObservePresentationWait(start, end time.Time) {
	m.PresentationWait.Observe(end.Sub(start).Seconds())
}
