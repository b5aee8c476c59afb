package audit

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

// StoreScorer selects reassignment targets from the agent store. Scoring
// favors agents already attached to the mission, then idle over active,
// then historical success rate, then throughput.
type StoreScorer struct {
	agents state.AgentStore
}

// NewStoreScorer creates a scorer backed by the given agent store.
func NewStoreScorer(agents state.AgentStore) *StoreScorer {
	return &StoreScorer{agents: agents}
}

// SelectBest returns the best available agent for the role, or nil when
// no agent with that role can accept work.
func (s *StoreScorer) SelectBest(role, missionID string) (*models.Agent, error) {
	candidates, err := s.agents.FindAgentsByRole(role)
	if err != nil {
		return nil, fmt.Errorf("find agents by role: %w", err)
	}

	available := candidates[:0]
	for _, a := range candidates {
		if a.Status.Available() {
			available = append(available, a)
		}
	}
	if len(available) == 0 {
		return nil, nil
	}

	sort.SliceStable(available, func(i, j int) bool {
		if a, b := score(available[i], missionID), score(available[j], missionID); a != b {
			return a > b
		}
		// Stable order on ties.
		return available[i].Name < available[j].Name
	})
	return available[0], nil
}

// score ranks an agent for assignment within a mission. Success rate
// dominates; mission affinity and idleness break near-ties.
func score(a *models.Agent, missionID string) float64 {
	s := a.SuccessRate
	// Untested agents rank below proven ones but above known-bad ones.
	if a.TasksCompleted+a.TasksFailed == 0 {
		s = 0.5
	}
	if a.CurrentMissionID == missionID && missionID != "" {
		s += 0.1
	}
	if a.Status == models.AgentStatusIdle {
		s += 0.05
	}
	return s
}
