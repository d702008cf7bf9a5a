// Package metrics exposes prometheus counters for OMDB traffic and catalog
// seeding.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for OMDB calls.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
)

var (
	registerOnce sync.Once

	omdbRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movie_catalog",
		Name:      "omdb_requests_total",
		Help:      "OMDB lookups by call (search, details) and outcome",
	}, []string{"call", "outcome"})
	seedRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movie_catalog",
		Name:      "seed_runs_total",
		Help:      "Catalog seeding runs by result (skipped, completed, failed)",
	}, []string{"result"})
	seededMovies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movie_catalog",
		Name:      "seeded_movies_total",
		Help:      "Movies committed to the catalog by the seeder",
	})
	seedCommits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movie_catalog",
		Name:      "seed_commits_total",
		Help:      "Batch commits performed by the seeder",
	})
)

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(omdbRequests, seedRuns, seededMovies, seedCommits)
	})
}

func IncOMDBRequest(call, outcome string) { omdbRequests.WithLabelValues(call, outcome).Inc() }
func IncSeedRun(result string)            { seedRuns.WithLabelValues(result).Inc() }
func AddSeededMovies(n int)               { seededMovies.Add(float64(n)) }
func IncSeedCommit()                      { seedCommits.Inc() }
