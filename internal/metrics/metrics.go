// Package metrics exposes Prometheus counters for the voting flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BallotsCast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopvote_ballots_cast_total",
		Help: "Ballots committed through the web flow.",
	})

	DuplicateVoteRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopvote_duplicate_vote_rejections_total",
		Help: "Submissions rejected because the member already voted.",
	})

	BallotRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopvote_ballot_rejections_total",
		Help: "Submissions rejected for over-selection or invalid candidates.",
	})

	VerificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopvote_verification_failures_total",
		Help: "Identity verification attempts that did not match records.",
	})

	EligibilityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopvote_eligibility_rejections_total",
		Help: "Members routed to not-qualified by the eligibility rules.",
	})
)
