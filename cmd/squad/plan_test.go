package main

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/squad/internal/orchestrator"
)

func TestPlanSummaryCounts(t *testing.T) {
	result := &orchestrator.PlanResult{
		MissionID:     "mission-1",
		TasksCreated:  []string{"t1", "t2", "t3"},
		AgentsCreated: []string{"a1"},
		AgentsReused:  []string{"a2", "a3"},
	}

	out := planSummary(result)
	for _, want := range []string{
		"Tasks created:  3",
		"Agents created: 1",
		"Agents reused:  2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPlanSummaryEmptyResult(t *testing.T) {
	out := planSummary(&orchestrator.PlanResult{MissionID: "mission-1"})
	if !strings.Contains(out, "Tasks created:  0") {
		t.Errorf("expected zero task count, got:\n%s", out)
	}
}
