package auction

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kyeworks/bidhall/bidhall/agent"
)

// StrategyResolver maps an agent kind to its bidding strategy. The default
// is agent.StrategyFor; tests inject mocks through this seam.
type StrategyResolver func(kind agent.Kind) agent.Strategy

// PolicyAdapter wraps external bidding strategies behind the single
// ProposeBid contract the engine relies on. The engine never sees a raw
// proposal: the adapter either returns an amount already clamped into
// [currentPrice + increment, remainingBudget] or an error telling the engine
// to skip the agent this round.
type PolicyAdapter struct {
	resolve StrategyResolver
}

func NewPolicyAdapter(resolve StrategyResolver) *PolicyAdapter {
	if resolve == nil {
		resolve = agent.StrategyFor
	}
	return &PolicyAdapter{resolve: resolve}
}

// ProposeBid invites the agent's strategy to bid under the given
// observation. Returns ErrInsufficientBudget when the agent cannot clear the
// minimum valid bid; this precondition is checked before the strategy runs,
// so strategies never have to produce well-formed declines themselves.
func (p *PolicyAdapter) ProposeBid(kind agent.Kind, obs agent.Observation) (decimal.Decimal, error) {
	minBid := obs.CurrentPrice.Add(obs.Increment)
	if obs.RemainingBudget.LessThan(minBid) {
		return decimal.Zero, fmt.Errorf("%w: remaining %s, minimum bid %s",
			ErrInsufficientBudget, obs.RemainingBudget.String(), minBid.String())
	}

	raw, ok := p.resolve(kind).ProposeBid(obs)
	if !ok {
		return decimal.Zero, errNoProposal
	}

	// Clamp: at least the minimum raise, at most the remaining budget.
	return decimal.Max(minBid, decimal.Min(obs.RemainingBudget, raw)), nil
}
