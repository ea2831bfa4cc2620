package billing

import (
	"fmt"
	"strings"

	"github.com/launchdeck/launchdeck/app/models"
)

// MapProviderPlan translates the provider's plan names to local plan values.
// Matching is case-insensitive; unknown names fall back to starter.
func MapProviderPlan(providerPlan string) string {
	switch strings.ToLower(strings.TrimSpace(providerPlan)) {
	case "basic", "free", "starter":
		return models.SubscriptionPlanStarter
	case "pro":
		return models.SubscriptionPlanPro
	case "business":
		return models.SubscriptionPlanBusiness
	case "enterprise":
		return models.SubscriptionPlanEnterprise
	default:
		return models.SubscriptionPlanStarter
	}
}

// MapProviderStatus translates provider subscription statuses, defaulting to active.
func MapProviderStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "canceled", "cancelled":
		return models.SubscriptionStatusCanceled
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "trialing":
		return models.SubscriptionStatusTrialing
	default:
		return models.SubscriptionStatusActive
	}
}

// DeriveSubscriptionStatus prefers trialing when the event carries both trial
// boundaries, otherwise maps the provider status.
func DeriveSubscriptionStatus(providerStatus string, hasTrialStart, hasTrialEnd bool) string {
	if hasTrialStart && hasTrialEnd {
		return models.SubscriptionStatusTrialing
	}
	return MapProviderStatus(providerStatus)
}

// NormalizeBillingCycle maps provider interval names onto monthly/yearly.
func NormalizeBillingCycle(cycle string) string {
	switch strings.ToLower(strings.TrimSpace(cycle)) {
	case "yearly", "annual", "year":
		return models.BillingCycleYearly
	default:
		return models.BillingCycleMonthly
	}
}

// AmountFromMinorUnits converts provider integer minor units (cents) to a
// decimal major-unit string with two places: 2999 -> "29.99".
func AmountFromMinorUnits(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if neg {
		return "-" + s
	}
	return s
}

// MaskLicenseKey keeps a short identifying prefix of a license key; the full
// key is never stored locally.
func MaskLicenseKey(key string) string {
	k := strings.TrimSpace(key)
	if k == "" {
		return ""
	}
	if len(k) <= 8 {
		return k + "****"
	}
	return k[:8] + "****"
}
