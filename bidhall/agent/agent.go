package agent

import (
	"github.com/shopspring/decimal"
)

// Kind labels the bidding strategy an agent runs. The engine never branches
// on it outside of display fields.
type Kind string

const (
	KindLearned   Kind = "learned"
	KindHeuristic Kind = "heuristic"
	KindManual    Kind = "manual"
)

// Agent is one bidding participant owned by a user. Budgets are tracked in
// three fields kept in lockstep: Remaining = Budget - Spent at all times.
type Agent struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Name      string          `json:"name"`
	Kind      Kind            `json:"strategyType"`
	Budget    decimal.Decimal `json:"budget"`
	Remaining decimal.Decimal `json:"remainingBudget"`
	Spent     decimal.Decimal `json:"totalSpent"`
	Active    bool            `json:"isActive"`
}
