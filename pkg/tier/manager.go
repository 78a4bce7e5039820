// Package tier implements the memory tier state machine: promotion,
// demotion, archival, expiry, and time-based decay.
//
// The ladder is working -> short_term -> long_term. Demotion walks the
// ladder in reverse, and a memory demoted out of working moves to the
// episodic archive rather than being discarded. Decay is exponential in
// time since last access, with per-type rates and faster decay in the
// lower tiers.
package tier

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/intelliclone/memengine-go/pkg/storage"
)

// Transition is the outcome of evaluating one memory during a sweep.
type Transition int

const (
	// TransitionNone leaves the memory where it is.
	TransitionNone Transition = iota

	// TransitionPromote moves the memory one tier up the ladder.
	TransitionPromote

	// TransitionDemote moves the memory one tier down the ladder.
	TransitionDemote

	// TransitionArchive moves the memory to the episodic archive.
	TransitionArchive
)

// TierConfig holds the per-tier thresholds.
type TierConfig struct {
	// PromotionThreshold is the importance a memory needs to be promoted
	// out of this tier.
	PromotionThreshold float64

	// MinDwell is the minimum age before a memory in this tier becomes
	// eligible for promotion.
	MinDwell time.Duration

	// TTL bounds how long memories may live in this tier before the
	// cleanup sweep soft-deletes them. Zero means unbounded.
	TTL time.Duration

	// Cap bounds the tier population per user. Exceeding the cap forces
	// the lowest-scoring members down regardless of their decay state.
	// Zero means uncapped.
	Cap int
}

// Config configures the tier manager.
type Config struct {
	// Tiers maps each tier to its thresholds.
	Tiers map[storage.Tier]TierConfig

	// BaseDecayRate is the per-day decay rate applied to long-term
	// memories. Lower tiers decay faster (see decayRateFor).
	BaseDecayRate float64

	// TypeDecayRates overrides the decay rate per memory type.
	TypeDecayRates map[storage.MemoryType]float64

	// DemotionFloor is the decay score below which an unaccessed memory
	// is demoted.
	DemotionFloor float64

	// AccessGrace is how recently a memory must have been accessed to be
	// protected from demotion despite a low decay score.
	AccessGrace time.Duration

	// ProtectionThreshold exempts memories whose importance exceeds it
	// from the accelerated decay of the lower tiers.
	ProtectionThreshold float64

	// ReinforcementFactor controls how much an access restores decay:
	// new = min(1, current + factor*(1-current)).
	ReinforcementFactor float64

	// SweepWindow is the idempotence window: records already swept within
	// it are skipped, so concurrent or repeated sweeps never double-charge
	// decay.
	SweepWindow time.Duration

	// BatchSize bounds how many records one sweep evaluates.
	BatchSize int
}

// DefaultConfig returns the default tier configuration. working and
// short_term are bounded; long_term and episodic are unbounded.
func DefaultConfig() *Config {
	return &Config{
		Tiers: map[storage.Tier]TierConfig{
			storage.TierWorking: {
				PromotionThreshold: 0.5,
				MinDwell:           time.Hour,
				TTL:                48 * time.Hour,
				Cap:                200,
			},
			storage.TierShortTerm: {
				PromotionThreshold: 0.7,
				MinDwell:           24 * time.Hour,
				TTL:                30 * 24 * time.Hour,
				Cap:                1000,
			},
			storage.TierLongTerm: {},
			storage.TierEpisodic: {},
		},
		BaseDecayRate:       0.05,
		TypeDecayRates:      map[storage.MemoryType]float64{storage.TypeContext: 0.15, storage.TypeEvent: 0.08},
		DemotionFloor:       0.3,
		AccessGrace:         72 * time.Hour,
		ProtectionThreshold: 0.8,
		ReinforcementFactor: 0.3,
		SweepWindow:         time.Hour,
		BatchSize:           500,
	}
}

// Manager applies the tier state machine.
type Manager struct {
	cfg    *Config
	logger *zap.Logger
}

// NewManager creates a tier manager. A nil config uses DefaultConfig; a nil
// logger is replaced with a no-op logger.
func NewManager(cfg *Config, logger *zap.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Config returns the manager's active configuration.
func (m *Manager) Config() *Config {
	return m.cfg
}

// CalculateDecay computes the current decay score of a memory from elapsed
// time since last access (or creation, if never accessed):
//
//	decay = e^(-rate * daysElapsed)
//
// The rate is the type-specific rate scaled up for lower tiers. Memories
// whose importance exceeds ProtectionThreshold keep the unaccelerated base
// rate regardless of tier.
func (m *Manager) CalculateDecay(mem *storage.Memory, now time.Time) float64 {
	anchor := mem.CreatedAt
	if mem.LastAccessedAt != nil {
		anchor = *mem.LastAccessedAt
	}
	days := now.Sub(anchor).Hours() / 24.0
	if days < 0 {
		days = 0
	}

	decay := math.Exp(-m.decayRateFor(mem) * days)
	if decay > 1 {
		return 1
	}
	return decay
}

// decayRateFor returns the per-day decay rate for a memory: the per-type
// rate (or base), multiplied by 2.0 in working and 1.5 in short_term unless
// the memory's importance is above the protection threshold.
func (m *Manager) decayRateFor(mem *storage.Memory) float64 {
	rate := m.cfg.BaseDecayRate
	if r, ok := m.cfg.TypeDecayRates[mem.Type]; ok {
		rate = r
	}

	if mem.Importance >= m.cfg.ProtectionThreshold {
		return rate
	}
	switch mem.Tier {
	case storage.TierWorking:
		return rate * 2.0
	case storage.TierShortTerm:
		return rate * 1.5
	default:
		return rate
	}
}

// Reinforce restores decay on access: new = min(1, d + f*(1-d)). Weak
// memories gain more than strong ones, and the result never exceeds 1.
func (m *Manager) Reinforce(current float64) float64 {
	reinforced := current + m.cfg.ReinforcementFactor*(1.0-current)
	if reinforced > 1.0 {
		return 1.0
	}
	return reinforced
}

// Evaluate decides the transition for one memory given its freshly computed
// decay score.
//
// Demotion is checked first: a memory below the demotion floor that has not
// been accessed within the grace window moves down, and is never promoted in
// the same sweep. Promotion requires importance above the current tier's
// threshold and the minimum dwell time elapsed. Episodic memories never
// transition.
func (m *Manager) Evaluate(mem *storage.Memory, decay float64, now time.Time) Transition {
	if mem.Tier == storage.TierEpisodic {
		return TransitionNone
	}

	if decay < m.cfg.DemotionFloor && !m.accessedRecently(mem, now) {
		if mem.Tier == storage.TierWorking {
			return TransitionArchive
		}
		return TransitionDemote
	}

	tc, ok := m.cfg.Tiers[mem.Tier]
	if !ok {
		return TransitionNone
	}
	if next, hasNext := nextTier(mem.Tier); hasNext {
		if mem.Importance >= tc.PromotionThreshold && now.Sub(mem.CreatedAt) >= tc.MinDwell {
			m.logger.Debug("memory eligible for promotion",
				zap.Int64("id", mem.ID),
				zap.String("from", string(mem.Tier)),
				zap.String("to", string(next)),
			)
			return TransitionPromote
		}
	}

	return TransitionNone
}

// Target returns the destination tier for a transition.
func Target(current storage.Tier, t Transition) (storage.Tier, bool) {
	switch t {
	case TransitionPromote:
		return nextTier(current)
	case TransitionDemote:
		return prevTier(current)
	case TransitionArchive:
		return storage.TierEpisodic, true
	default:
		return current, false
	}
}

// TTLs returns the per-tier TTL map for cleanup sweeps; unbounded tiers are
// omitted.
func (m *Manager) TTLs() map[storage.Tier]time.Duration {
	ttls := make(map[storage.Tier]time.Duration)
	for tier, tc := range m.cfg.Tiers {
		if tc.TTL > 0 {
			ttls[tier] = tc.TTL
		}
	}
	return ttls
}

func (m *Manager) accessedRecently(mem *storage.Memory, now time.Time) bool {
	return mem.LastAccessedAt != nil && now.Sub(*mem.LastAccessedAt) <= m.cfg.AccessGrace
}

func nextTier(t storage.Tier) (storage.Tier, bool) {
	switch t {
	case storage.TierWorking:
		return storage.TierShortTerm, true
	case storage.TierShortTerm:
		return storage.TierLongTerm, true
	default:
		return t, false
	}
}

func prevTier(t storage.Tier) (storage.Tier, bool) {
	switch t {
	case storage.TierLongTerm:
		return storage.TierShortTerm, true
	case storage.TierShortTerm:
		return storage.TierWorking, true
	case storage.TierWorking:
		return storage.TierEpisodic, true
	default:
		return t, false
	}
}

// SweepResult summarizes one consolidation sweep.
type SweepResult struct {
	Evaluated int `json:"evaluated"`
	Promoted  int `json:"promoted"`
	Demoted   int `json:"demoted"`
	Archived  int `json:"archived"`
	Failed    int `json:"failed"`
}

// Changed is the total number of tier transitions the sweep applied.
func (r *SweepResult) Changed() int {
	return r.Promoted + r.Demoted + r.Archived
}

// Sweep runs one consolidation pass over the memories of a scope that are
// due for re-evaluation.
//
// Each record is processed in isolation: a failure updating one memory is
// counted and logged, and the rest of the batch continues. Records swept
// within the idempotence window are excluded by the storage watermark, so
// running the sweep twice in immediate succession with no new activity
// makes no additional changes, and concurrent sweeps never double-charge
// decay.
func (m *Manager) Sweep(ctx context.Context, store storage.Store, scope storage.Scope, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}

	batch, err := store.GetForConsolidation(ctx, scope, now.Add(-m.cfg.SweepWindow), m.cfg.BatchSize)
	if err != nil {
		return result, err
	}

	for _, mem := range batch {
		result.Evaluated++

		decay := m.CalculateDecay(mem, now)
		if err := store.UpdateDecay(ctx, mem.ID, decay, now); err != nil {
			result.Failed++
			m.logger.Warn("sweep: decay update failed",
				zap.Int64("id", mem.ID), zap.Error(err))
			continue
		}

		transition := m.Evaluate(mem, decay, now)
		if transition == TransitionNone {
			continue
		}
		target, ok := Target(mem.Tier, transition)
		if !ok {
			continue
		}
		if err := store.UpdateTier(ctx, mem.ID, target); err != nil {
			result.Failed++
			m.logger.Warn("sweep: tier update failed",
				zap.Int64("id", mem.ID), zap.Error(err))
			continue
		}

		switch transition {
		case TransitionPromote:
			result.Promoted++
		case TransitionDemote:
			result.Demoted++
		case TransitionArchive:
			result.Archived++
		}
	}

	if err := m.enforceCaps(ctx, store, scope, result); err != nil {
		m.logger.Warn("sweep: cap enforcement failed", zap.Error(err))
	}

	m.logger.Info("consolidation sweep complete",
		zap.String("user", scope.UserID),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("promoted", result.Promoted),
		zap.Int("demoted", result.Demoted),
		zap.Int("archived", result.Archived),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// enforceCaps demotes the lowest-scoring members of any tier whose
// population exceeds its cap, independent of their individual decay state.
func (m *Manager) enforceCaps(ctx context.Context, store storage.Store, scope storage.Scope, result *SweepResult) error {
	for _, tier := range storage.ActiveTiers {
		tc, ok := m.cfg.Tiers[tier]
		if !ok || tc.Cap <= 0 {
			continue
		}

		t := tier
		count, err := store.CountByUser(ctx, scope.UserID, scope.TenantID, &t)
		if err != nil {
			return err
		}
		excess := count - tc.Cap
		if excess <= 0 {
			continue
		}

		members, err := store.FindByCriteria(ctx, &storage.Criteria{
			Scope: scope,
			Tiers: []storage.Tier{t},
		})
		if err != nil {
			return err
		}

		// Lowest importance goes first; older memories break ties.
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].Importance != members[j].Importance {
				return members[i].Importance < members[j].Importance
			}
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		})
		if excess > len(members) {
			excess = len(members)
		}

		for _, mem := range members[:excess] {
			target, ok := prevTier(t)
			if !ok {
				break
			}
			if err := store.UpdateTier(ctx, mem.ID, target); err != nil {
				result.Failed++
				m.logger.Warn("sweep: cap demotion failed",
					zap.Int64("id", mem.ID), zap.Error(err))
				continue
			}
			if target == storage.TierEpisodic {
				result.Archived++
			} else {
				result.Demoted++
			}
		}
	}
	return nil
}
