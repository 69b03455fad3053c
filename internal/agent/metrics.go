package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
)

const (
	outcomeActed    = "acted"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
	outcomeOrphaned = "orphaned"
	outcomeEmpty    = "empty_generation"
)

var (
	metricItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tweetbot",
		Name:      "workflow_items_total",
		Help:      "Candidate items handled by a workflow, by outcome.",
	}, []string{"workflow", "outcome"})
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tweetbot",
		Name:      "workflow_runs_total",
		Help:      "Workflow invocations, by result.",
	}, []string{"workflow", "result"})
)

func recordItem(kind domain.WorkflowKind, outcome string) {
	metricItems.WithLabelValues(string(kind), outcome).Inc()
}

func recordRun(kind domain.WorkflowKind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metricRuns.WithLabelValues(string(kind), result).Inc()
}
