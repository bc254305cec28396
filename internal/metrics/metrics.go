// Package metrics registers the bot's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelSource  = "source"
	LabelStatus  = "status"
	LabelCommand = "command"
	LabelOutcome = "outcome"
)

var (
	XPAwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_xp_awards_total",
			Help: "XP awards by trigger",
		},
		[]string{LabelSource},
	)

	LevelUps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hearth_level_ups_total",
			Help: "Level-ups applied",
		},
	)

	CooldownEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_cooldown_entries",
			Help: "Members currently held in the message cooldown table",
		},
	)

	ReactionRoleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_reaction_role_events_total",
			Help: "Reaction role events by outcome",
		},
		[]string{LabelOutcome},
	)

	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_commands_total",
			Help: "Slash commands handled",
		},
		[]string{LabelCommand, LabelStatus},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_api_requests_total",
			Help: "Outbound HTTP requests by source and status code",
		},
		[]string{LabelSource, LabelStatus},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hearth_api_request_duration_seconds",
			Help:    "Outbound HTTP request latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{LabelSource},
	)
)

// ObserveAPI records one outbound request. Status 0 means no response arrived.
func ObserveAPI(source string, status int, elapsed time.Duration) {
	APIRequests.WithLabelValues(source, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func ObserveCommand(command string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Commands.WithLabelValues(command, status).Inc()
}
