package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/squad/internal/orchestrator"
	"github.com/ShayCichocki/squad/internal/planwatch"
	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

var planDBPath string

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Submit a plan file to a mission",
	Long: `Parse a plan file and materialize its tasks and agents.

The file must be YAML or JSON and name the mission it targets:

  mission_id: mission-1
  agents:
    - name: scout
      role: researcher
  tasks:
    - id: t1
      title: Gather sources
      assign_to: scout
    - id: t2
      title: Draft report
      dependencies: [t1]

Examples:
  squad plan ./plan.yaml
  squad plan --db ./squad.db ./plan.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planDBPath, "db", "", "Database path (defaults to the data dir)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	pf, err := planwatch.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	dbPath := planDBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	coord := orchestrator.NewCoordinator(db)
	plan := &models.Plan{Tasks: pf.Tasks, Agents: pf.Agents, Dependencies: pf.Dependencies}

	result, err := coord.ProcessPlan(pf.MissionID, pf.LeadTaskID, plan)
	if err != nil {
		printStatus("✗", fmt.Sprintf("Plan rejected: %v", err), color.FgRed)
		return err
	}

	printStatus("✓", fmt.Sprintf("Plan applied to mission %s", result.MissionID), color.FgGreen)
	fmt.Print(planSummary(result))

	if len(result.Errors) > 0 {
		printStatus("⚠", fmt.Sprintf("%d plan items failed:", len(result.Errors)), color.FgYellow)
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

func planSummary(result *orchestrator.PlanResult) string {
	return fmt.Sprintf("  Tasks created:  %d\n  Agents created: %d\n  Agents reused:  %d\n",
		len(result.TasksCreated), len(result.AgentsCreated), len(result.AgentsReused))
}
