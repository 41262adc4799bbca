// Package scoring derives the ranking numbers shown on lead lists. The
// scores are recomputed on every write, so they never need backfilling.
package scoring

import "estate_crm_backend/internal/leads/transport"

type Input struct {
	Classification transport.Classification
	Status         transport.LeadStatus
	BudgetMin      *int64
	BudgetMax      *int64
}

// Priority ranks how urgently a lead needs attention. Classification
// dominates; pipeline progress adds a smaller bump so a hot lead deep in
// negotiation outranks a hot lead nobody has called.
func Priority(in Input) int {
	var base int
	switch in.Classification {
	case transport.ClassificationHot:
		base = 70
	case transport.ClassificationWarm:
		base = 40
	case transport.ClassificationCold:
		base = 15
	case transport.ClassificationVoid:
		return 0
	}

	switch in.Status {
	case transport.LeadStatusNegotiation, transport.LeadStatusBooked:
		base += 25
	case transport.LeadStatusSiteVisit, transport.LeadStatusShortlisted:
		base += 15
	case transport.LeadStatusQualified:
		base += 10
	case transport.LeadStatusContacted:
		base += 5
	case transport.LeadStatusLost:
		return 0
	}

	if base > 100 {
		base = 100
	}
	return base
}

// Investment buckets declared budget into a 0-100 scale. Midpoint of the
// declared range when both bounds exist, otherwise whichever bound was given.
func Investment(in Input) int {
	var budget int64
	switch {
	case in.BudgetMin != nil && in.BudgetMax != nil:
		budget = (*in.BudgetMin + *in.BudgetMax) / 2
	case in.BudgetMax != nil:
		budget = *in.BudgetMax
	case in.BudgetMin != nil:
		budget = *in.BudgetMin
	default:
		return 0
	}

	switch {
	case budget >= 50_000_000:
		return 100
	case budget >= 20_000_000:
		return 80
	case budget >= 10_000_000:
		return 60
	case budget >= 5_000_000:
		return 40
	case budget > 0:
		return 20
	default:
		return 0
	}
}
