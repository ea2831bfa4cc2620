package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{"starter", PlanStarter},
		{"pro", PlanPro},
		{"PRO", PlanPro},
		{" business ", PlanBusiness},
		{"enterprise", PlanEnterprise},
		{"unknown", PlanStarter},
		{"", PlanStarter},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRankOrdering(t *testing.T) {
	assert.Less(t, Rank(PlanStarter), Rank(PlanPro))
	assert.Less(t, Rank(PlanPro), Rank(PlanBusiness))
	assert.Less(t, Rank(PlanBusiness), Rank(PlanEnterprise))
}

func TestLimitsPerPlan(t *testing.T) {
	tests := []struct {
		plan     Plan
		seats    int
		apiRPM   int
		webhooks bool
		priority bool
	}{
		{PlanStarter, 1, 30, false, false},
		{PlanPro, 5, 120, true, false},
		{PlanBusiness, 25, 300, true, true},
		{PlanEnterprise, 0, 1000, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			assert.Equal(t, tt.seats, MaxSeats(tt.plan))
			assert.Equal(t, tt.apiRPM, APIRequestsPerMinute(tt.plan))
			assert.Equal(t, tt.webhooks, CanUseWebhooks(tt.plan))
			assert.Equal(t, tt.priority, HasPrioritySupport(tt.plan))
		})
	}
}
