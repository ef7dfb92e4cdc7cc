// Package metrics provides Prometheus metrics for the authoring engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	SessionsStarted      prometheus.Counter
	SessionsFinished     *prometheus.CounterVec
	MessagesTotal        *prometheus.CounterVec
	TokensStreamed       prometheus.Counter
	QuestionsAsked       prometheus.Counter
	SuggestionsExtracted prometheus.Counter
	TasksCreated         prometheus.Counter
	EventsPublished      *prometheus.CounterVec
	ModelTurns           *prometheus.CounterVec
	SSESubscribers       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdraft_sessions_started_total",
			Help: "Total authoring sessions started.",
		}),
		SessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdraft_sessions_finished_total",
			Help: "Total sessions finished by outcome.",
		}, []string{"outcome"}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdraft_messages_total",
			Help: "Total conversation messages by role.",
		}, []string{"role"}),
		TokensStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdraft_tokens_streamed_total",
			Help: "Total text deltas streamed to the event log.",
		}),
		QuestionsAsked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdraft_questions_asked_total",
			Help: "Total clarifying questions surfaced to operators.",
		}),
		SuggestionsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdraft_suggestions_extracted_total",
			Help: "Total task suggestions extracted from model output.",
		}),
		TasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdraft_tasks_created_total",
			Help: "Total task records created from accepted suggestions.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdraft_events_published_total",
			Help: "Total events published to session streams by type.",
		}, []string{"type"}),
		ModelTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdraft_model_turns_total",
			Help: "Total model turns by result.",
		}, []string{"result"}),
		SSESubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskdraft_sse_subscribers",
			Help: "Live SSE subscribers across all streams.",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsFinished,
		m.MessagesTotal,
		m.TokensStreamed,
		m.QuestionsAsked,
		m.SuggestionsExtracted,
		m.TasksCreated,
		m.EventsPublished,
		m.ModelTurns,
		m.SSESubscribers,
	)
	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
