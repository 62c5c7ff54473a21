// Package metrics holds the Prometheus collectors for account runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questline_retries_total",
			Help: "Retried remote operations, by operation.",
		},
		[]string{"operation"},
	)

	AccountRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questline_account_runs_total",
			Help: "Finished account runs, by session kind and outcome.",
		},
		[]string{"session", "outcome"},
	)

	QuestResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questline_quest_results_total",
			Help: "Quest results, by quest title and status.",
		},
		[]string{"quest", "status"},
	)

	CreditsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "questline_credits_total",
			Help: "Credits awarded across all accounts.",
		},
	)

	ChallengeSolvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questline_challenge_solves_total",
			Help: "Challenge solve attempts, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
)

// NewRegistry returns a registry with the runtime collectors and every
// collector of this package.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RetriesTotal,
		AccountRunsTotal,
		QuestResultsTotal,
		CreditsTotal,
		ChallengeSolvesTotal,
	)
	return registry
}
