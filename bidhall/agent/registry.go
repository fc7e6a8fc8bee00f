package agent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrAgentNotFound is returned when an agent id resolves to no registered
// profile.
var ErrAgentNotFound = fmt.Errorf("agent not found")

const manualAgentBudget = 100_000

// defaultProfile describes one of the stock agents every owner starts with.
type defaultProfile struct {
	slug   string
	name   string
	kind   Kind
	budget int64
}

var defaultProfiles = []defaultProfile{
	{slug: "alpha", name: "Alpha Bot", kind: KindLearned, budget: 10_000},
	{slug: "beta", name: "Beta Bot", kind: KindHeuristic, budget: 8_000},
	{slug: "gamma", name: "Gamma Bot", kind: KindLearned, budget: 15_000},
}

// managed wraps an agent with its own lock. Budget deductions at auction
// finalization may race across auctions sharing the same agent, so every
// mutation goes through this lock.
type managed struct {
	mu    sync.Mutex
	agent Agent
}

// Registry holds all agent profiles for the lifetime of the process, scoped
// per owner. Owners are initialized lazily with the default profile set on
// first reference and never destroyed within a session.
type Registry struct {
	mu      sync.RWMutex
	byOwner map[string][]*managed
	byID    map[string]*managed
}

func NewRegistry() *Registry {
	return &Registry{
		byOwner: make(map[string][]*managed),
		byID:    make(map[string]*managed),
	}
}

// Register adds a custom agent profile alongside the owner's defaults. The
// budget fields must already be consistent.
func (r *Registry) Register(a Agent) error {
	if !a.Remaining.Add(a.Spent).Equal(a.Budget) {
		return fmt.Errorf("inconsistent budget for agent %s: %s remaining + %s spent != %s budget",
			a.ID, a.Remaining.String(), a.Spent.String(), a.Budget.String())
	}
	if a.Remaining.Sign() < 0 {
		return fmt.Errorf("negative remaining budget for agent %s", a.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("agent %s already registered", a.ID)
	}
	m := &managed{agent: a}
	r.byID[a.ID] = m
	r.byOwner[a.OwnerID] = append(r.byOwner[a.OwnerID], m)
	return nil
}

// ForOwner returns the owner's agents in stable order, creating the default
// set if the owner has never been seen.
func (r *Registry) ForOwner(ownerID string) []Agent {
	r.mu.Lock()
	r.ensureOwnerLocked(ownerID)
	members := r.byOwner[ownerID]
	r.mu.Unlock()

	agents := make([]Agent, 0, len(members))
	for _, m := range members {
		m.mu.Lock()
		agents = append(agents, m.agent)
		m.mu.Unlock()
	}
	return agents
}

// Get returns a copy of the agent with the given id.
func (r *Registry) Get(agentID string) (Agent, error) {
	r.mu.RLock()
	m, ok := r.byID[agentID]
	r.mu.RUnlock()
	if !ok {
		return Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agent, nil
}

// OwnedBy reports whether the agent exists and belongs to the owner. Start
// requests bind (owner, agent) pairs and must not bind someone else's agent.
func (r *Registry) OwnedBy(ownerID, agentID string) (Agent, error) {
	a, err := r.Get(agentID)
	if err != nil {
		return Agent{}, err
	}
	if a.OwnerID != ownerID {
		return Agent{}, fmt.Errorf("%w: %s does not belong to %s", ErrAgentNotFound, agentID, ownerID)
	}
	return a, nil
}

// EnsureManualAgent returns the owner's manual bidding profile, creating it
// on first use. Manual bids placed over the API are attributed to it so that
// finalization and budget accounting treat human and automated bids alike.
func (r *Registry) EnsureManualAgent(ownerID string) Agent {
	id := fmt.Sprintf("manual_%s", ownerID)

	r.mu.Lock()
	r.ensureOwnerLocked(ownerID)
	m, ok := r.byID[id]
	if !ok {
		budget := decimal.NewFromInt(manualAgentBudget)
		m = &managed{agent: Agent{
			ID:        id,
			OwnerID:   ownerID,
			Name:      "Manual Bidder",
			Kind:      KindManual,
			Budget:    budget,
			Remaining: budget,
			Spent:     decimal.Zero,
			Active:    true,
		}}
		r.byID[id] = m
		r.byOwner[ownerID] = append(r.byOwner[ownerID], m)
	}
	r.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agent
}

// Deduct removes amount from the agent's remaining budget and adds it to its
// cumulative spend, serialized under the per-agent lock. A deduction that
// would push the remaining budget negative is refused.
func (r *Registry) Deduct(agentID string, amount decimal.Decimal) error {
	r.mu.RLock()
	m, ok := r.byID[agentID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.agent.Remaining.LessThan(amount) {
		return fmt.Errorf("deduction %s exceeds remaining budget %s for agent %s",
			amount.String(), m.agent.Remaining.String(), agentID)
	}

	m.agent.Remaining = m.agent.Remaining.Sub(amount)
	m.agent.Spent = m.agent.Spent.Add(amount)

	slog.Debug("Deducted agent budget",
		slog.String("agent_id", agentID),
		slog.String("amount", amount.String()),
		slog.String("remaining", m.agent.Remaining.String()))
	return nil
}

func (r *Registry) ensureOwnerLocked(ownerID string) {
	if _, ok := r.byOwner[ownerID]; ok {
		return
	}

	members := make([]*managed, 0, len(defaultProfiles))
	for _, p := range defaultProfiles {
		budget := decimal.NewFromInt(p.budget)
		m := &managed{agent: Agent{
			ID:        fmt.Sprintf("%s_%s", p.slug, ownerID),
			OwnerID:   ownerID,
			Name:      p.name,
			Kind:      p.kind,
			Budget:    budget,
			Remaining: budget,
			Spent:     decimal.Zero,
			Active:    true,
		}}
		members = append(members, m)
		r.byID[m.agent.ID] = m
	}
	r.byOwner[ownerID] = members

	slog.Info("Initialized default agents for owner",
		slog.String("owner_id", ownerID),
		slog.Int("count", len(members)))
}
