package entitlements

import "strings"

type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
)

// Normalize maps arbitrary plan strings to a known plan, defaulting to starter.
func Normalize(plan string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(plan))) {
	case PlanPro:
		return PlanPro
	case PlanBusiness:
		return PlanBusiness
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanStarter
	}
}

// Rank orders plans from least to most capable.
func Rank(plan Plan) int {
	switch plan {
	case PlanEnterprise:
		return 3
	case PlanBusiness:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// MaxSeats returns how many team members a plan allows. Zero means unlimited.
func MaxSeats(plan Plan) int {
	switch plan {
	case PlanEnterprise:
		return 0
	case PlanBusiness:
		return 25
	case PlanPro:
		return 5
	default:
		return 1
	}
}

// APIRequestsPerMinute returns the API rate limit for a plan.
func APIRequestsPerMinute(plan Plan) int {
	switch plan {
	case PlanEnterprise:
		return 1000
	case PlanBusiness:
		return 300
	case PlanPro:
		return 120
	default:
		return 30
	}
}

// CanUseWebhooks reports whether the plan may configure outbound webhooks.
func CanUseWebhooks(plan Plan) bool {
	return Rank(plan) >= Rank(PlanPro)
}

// HasPrioritySupport reports whether the plan includes priority support.
func HasPrioritySupport(plan Plan) bool {
	return Rank(plan) >= Rank(PlanBusiness)
}
