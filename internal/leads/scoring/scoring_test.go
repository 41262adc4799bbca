package scoring

import (
	"testing"

	"estate_crm_backend/internal/leads/transport"
)

func TestPriority(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{name: "void is always zero", in: Input{Classification: transport.ClassificationVoid, Status: transport.LeadStatusNegotiation}, want: 0},
		{name: "lost is always zero", in: Input{Classification: transport.ClassificationHot, Status: transport.LeadStatusLost}, want: 0},
		{name: "hot new lead", in: Input{Classification: transport.ClassificationHot, Status: transport.LeadStatusNew}, want: 70},
		{name: "hot in negotiation", in: Input{Classification: transport.ClassificationHot, Status: transport.LeadStatusNegotiation}, want: 95},
		{name: "warm contacted", in: Input{Classification: transport.ClassificationWarm, Status: transport.LeadStatusContacted}, want: 45},
		{name: "cold qualified", in: Input{Classification: transport.ClassificationCold, Status: transport.LeadStatusQualified}, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Priority(tt.in); got != tt.want {
				t.Errorf("Priority() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvestment(t *testing.T) {
	budget := func(v int64) *int64 { return &v }

	tests := []struct {
		name string
		in   Input
		want int
	}{
		{name: "no budget", in: Input{}, want: 0},
		{name: "midpoint of range", in: Input{BudgetMin: budget(10_000_000), BudgetMax: budget(30_000_000)}, want: 80},
		{name: "only max", in: Input{BudgetMax: budget(6_000_000)}, want: 40},
		{name: "only min", in: Input{BudgetMin: budget(1_000_000)}, want: 20},
		{name: "top bucket", in: Input{BudgetMin: budget(60_000_000), BudgetMax: budget(80_000_000)}, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Investment(tt.in); got != tt.want {
				t.Errorf("Investment() = %d, want %d", got, tt.want)
			}
		})
	}
}
