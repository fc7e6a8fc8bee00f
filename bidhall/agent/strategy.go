package agent

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is what a strategy sees when invited to bid: the auction's
// current price and increment, the inviting agent's remaining budget, and how
// much auction time is left. StartingPrice and Duration are carried so
// strategies can estimate value and pace themselves.
type Observation struct {
	CurrentPrice    decimal.Decimal
	Increment       decimal.Decimal
	RemainingBudget decimal.Decimal
	TimeRemaining   time.Duration
	StartingPrice   decimal.Decimal
	Duration        time.Duration
}

// Progress returns how far along the auction is in [0, 1].
func (o Observation) Progress() float64 {
	if o.Duration <= 0 {
		return 1
	}
	p := 1 - o.TimeRemaining.Seconds()/o.Duration.Seconds()
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Strategy maps an observation to a proposed bid amount. Returning ok=false
// declines the round. Proposals may be out of range; the engine-side policy
// adapter clamps them before use.
type Strategy interface {
	ProposeBid(obs Observation) (amount decimal.Decimal, ok bool)
}

// StrategyFor returns the strategy implementation for an agent kind. The
// learned strategy is shared so its value table accumulates across agents,
// mirroring a single server-side inference model.
func StrategyFor(kind Kind) Strategy {
	switch kind {
	case KindHeuristic:
		return defaultHeuristic
	case KindLearned:
		return defaultLearned
	default:
		return ManualStrategy{}
	}
}

var (
	defaultHeuristic = &HeuristicStrategy{Aggression: 0.5, MaxBidRatio: 0.85}
	defaultLearned   = NewLearnedStrategy(0.1)
)

// HeuristicStrategy bids the minimum raise through most of the auction,
// sitting out early rounds with probability scaled by its aggression, then
// jumps toward its estimated item value in the final stretch.
type HeuristicStrategy struct {
	Aggression  float64
	MaxBidRatio float64
}

func (s *HeuristicStrategy) ProposeBid(obs Observation) (decimal.Decimal, bool) {
	if obs.RemainingBudget.Sign() <= 0 {
		return decimal.Zero, false
	}

	estimated := estimateValue(obs, 1.0, 0.5)
	progress := obs.Progress()

	// Hold back early unless aggressive.
	if progress < 0.3 && s.Aggression < 0.7 && rand.Float64() > s.Aggression {
		return decimal.Zero, false
	}

	next := obs.CurrentPrice.Add(obs.Increment)
	maxBid := estimated.Mul(decimal.NewFromFloat(s.MaxBidRatio))
	if next.GreaterThan(maxBid) || next.GreaterThan(obs.RemainingBudget) {
		return decimal.Zero, false
	}

	if progress > 0.8 {
		jump := estimated.Mul(decimal.NewFromFloat(0.9 + s.Aggression*0.1))
		return decimal.Min(jump, obs.RemainingBudget), true
	}

	return next, true
}

// LearnedStrategy is the inference side of the trained bidder: epsilon-greedy
// over a discretized auction state, choosing among a handful of increment
// steps above the current price. The value table lives in memory and is
// shaped like the offline model's state key; training it is out of scope.
type LearnedStrategy struct {
	epsilon float64

	mu     sync.Mutex
	values map[string]map[string]float64
}

func NewLearnedStrategy(epsilon float64) *LearnedStrategy {
	return &LearnedStrategy{
		epsilon: epsilon,
		values:  make(map[string]map[string]float64),
	}
}

func (s *LearnedStrategy) ProposeBid(obs Observation) (decimal.Decimal, bool) {
	if obs.RemainingBudget.Sign() <= 0 {
		return decimal.Zero, false
	}

	estimated := estimateValue(obs, 1.2, 0.3)
	actions := s.availableActions(obs, estimated)
	if len(actions) == 0 {
		return decimal.Zero, false
	}

	if rand.Float64() < s.epsilon {
		return actions[rand.IntN(len(actions))], true
	}
	return s.exploit(obs, actions), true
}

// availableActions enumerates candidate raises: up to five increment steps
// above the minimum valid bid, capped by estimated value and budget.
func (s *LearnedStrategy) availableActions(obs Observation, estimated decimal.Decimal) []decimal.Decimal {
	minBid := obs.CurrentPrice.Add(obs.Increment)
	var actions []decimal.Decimal
	for i := 0; i < 5; i++ {
		bid := minBid.Add(obs.Increment.Mul(decimal.NewFromInt(int64(i))))
		if bid.LessThanOrEqual(estimated) && bid.LessThanOrEqual(obs.RemainingBudget) {
			actions = append(actions, bid)
		}
	}
	return actions
}

func (s *LearnedStrategy) exploit(obs Observation, actions []decimal.Decimal) decimal.Decimal {
	state := s.stateKey(obs)

	s.mu.Lock()
	defer s.mu.Unlock()

	best := actions[0]
	bestValue := s.values[state][best.String()]
	for _, a := range actions[1:] {
		if v := s.values[state][a.String()]; v > bestValue {
			best, bestValue = a, v
		}
	}
	return best
}

// UpdateValue applies a temporal-difference update for one (state, action)
// pair. Exposed so an offline trainer can warm the table.
func (s *LearnedStrategy) UpdateValue(state, action string, reward, learningRate, discount float64, nextState string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values[state] == nil {
		s.values[state] = make(map[string]float64)
	}

	var maxNext float64
	for _, v := range s.values[nextState] {
		if v > maxNext {
			maxNext = v
		}
	}

	current := s.values[state][action]
	s.values[state][action] = current + learningRate*(reward+discount*maxNext-current)
}

func (s *LearnedStrategy) stateKey(obs Observation) string {
	priceLevel := 0
	if obs.StartingPrice.Sign() > 0 {
		level, _ := obs.CurrentPrice.Div(obs.StartingPrice).Float64()
		priceLevel = int(level * 10)
	}
	return fmt.Sprintf("%d_%d", int(obs.Progress()*10), priceLevel)
}

// ManualStrategy never proposes; manual bids arrive through the API instead
// of the auto-bidding rounds.
type ManualStrategy struct{}

func (ManualStrategy) ProposeBid(Observation) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

// estimateValue prices the item at startingPrice * (base + U(0, spread)),
// capped by the agent's remaining budget.
func estimateValue(obs Observation, base, spread float64) decimal.Decimal {
	factor := decimal.NewFromFloat(base + rand.Float64()*spread)
	v := obs.StartingPrice.Mul(factor)
	return decimal.Min(v, obs.RemainingBudget)
}
