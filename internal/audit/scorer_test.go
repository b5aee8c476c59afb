package audit

import (
	"testing"
	"time"

	"github.com/ShayCichocki/squad/pkg/models"
)

func seedAgent(t *testing.T, s *StoreScorer, a *models.Agent) {
	t.Helper()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	}
	if err := s.agents.CreateAgent(a); err != nil {
		t.Fatalf("create agent %s: %v", a.Name, err)
	}
}

func TestSelectBestPrefersTrackRecord(t *testing.T) {
	db := openTestDB(t)
	s := NewStoreScorer(db)

	seedAgent(t, s, &models.Agent{ID: "a1", Name: "r1", Role: "researcher",
		Status: models.AgentStatusIdle, TasksCompleted: 9, TasksFailed: 1, SuccessRate: 0.9})
	seedAgent(t, s, &models.Agent{ID: "a2", Name: "r2", Role: "researcher",
		Status: models.AgentStatusIdle, TasksCompleted: 3, TasksFailed: 3, SuccessRate: 0.5})

	best, err := s.SelectBest("researcher", "mission-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best == nil || best.ID != "a1" {
		t.Fatalf("expected a1, got %+v", best)
	}
}

func TestSelectBestMissionAffinityBreaksTies(t *testing.T) {
	db := openTestDB(t)
	s := NewStoreScorer(db)

	seedAgent(t, s, &models.Agent{ID: "a1", Name: "r1", Role: "researcher",
		Status: models.AgentStatusActive, CurrentMissionID: "mission-other",
		TasksCompleted: 5, SuccessRate: 0.8})
	seedAgent(t, s, &models.Agent{ID: "a2", Name: "r2", Role: "researcher",
		Status: models.AgentStatusActive, CurrentMissionID: "mission-1",
		TasksCompleted: 5, SuccessRate: 0.8})

	best, err := s.SelectBest("researcher", "mission-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best == nil || best.ID != "a2" {
		t.Fatalf("expected mission-affine a2, got %+v", best)
	}
}

func TestSelectBestSkipsUnavailableAgents(t *testing.T) {
	db := openTestDB(t)
	s := NewStoreScorer(db)

	seedAgent(t, s, &models.Agent{ID: "a1", Name: "r1", Role: "researcher",
		Status: models.AgentStatusBusy, TasksCompleted: 10, SuccessRate: 1.0})
	seedAgent(t, s, &models.Agent{ID: "a2", Name: "r2", Role: "researcher",
		Status: models.AgentStatusOffline, TasksCompleted: 10, SuccessRate: 1.0})

	best, err := s.SelectBest("researcher", "mission-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best != nil {
		t.Fatalf("expected no eligible agent, got %+v", best)
	}
}

func TestSelectBestUntestedAgentBeatsPoorPerformer(t *testing.T) {
	db := openTestDB(t)
	s := NewStoreScorer(db)

	seedAgent(t, s, &models.Agent{ID: "a1", Name: "r1", Role: "researcher",
		Status: models.AgentStatusIdle, TasksCompleted: 1, TasksFailed: 9, SuccessRate: 0.1})
	seedAgent(t, s, &models.Agent{ID: "a2", Name: "r2", Role: "researcher",
		Status: models.AgentStatusIdle})

	best, err := s.SelectBest("researcher", "mission-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// An untested agent gets the neutral baseline, better than a proven
	// poor performer.
	if best == nil || best.ID != "a2" {
		t.Fatalf("expected untested a2, got %+v", best)
	}
}

func TestSelectBestMissionAffinityBreaksUntestedTies(t *testing.T) {
	db := openTestDB(t)
	s := NewStoreScorer(db)

	// Both untested; the name tie-break alone would pick r1.
	seedAgent(t, s, &models.Agent{ID: "a1", Name: "r1", Role: "researcher",
		Status: models.AgentStatusActive, CurrentMissionID: "mission-other"})
	seedAgent(t, s, &models.Agent{ID: "a2", Name: "r2", Role: "researcher",
		Status: models.AgentStatusActive, CurrentMissionID: "mission-1"})

	best, err := s.SelectBest("researcher", "mission-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The baseline applies before the bonuses, so affinity still counts
	// for agents with no history.
	if best == nil || best.ID != "a2" {
		t.Fatalf("expected mission-affine a2, got %+v", best)
	}
}
