package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/squad/internal/state"
	"github.com/ShayCichocki/squad/pkg/models"
)

var statusDBPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mission and agent state",
	Long: `Display the current state of the Squad database.

Shows:
  - Missions and their task progress
  - Agents, their status, and track record`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDBPath, "db", "", "Database path (defaults to the data dir)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := statusDBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No database found. Run 'squad serve' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	missions, err := db.ListMissions()
	if err != nil {
		return fmt.Errorf("list missions: %w", err)
	}

	if len(missions) == 0 {
		fmt.Println("No missions. Submit one over the API or drop a plan file.")
		return nil
	}

	fmt.Println("Missions:")
	for _, m := range missions {
		if err := displayMission(db, m); err != nil {
			return err
		}
	}

	agents, err := db.ListAgents()
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	displayAgents(agents)

	return nil
}

func displayMission(db *state.DB, m *models.Mission) error {
	tasks, err := db.FindTasksByMission(m.ID, state.TaskFilter{})
	if err != nil {
		return fmt.Errorf("list tasks for %s: %w", m.ID, err)
	}

	done, failed := 0, 0
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusCompleted:
			done++
		case models.TaskStatusFailed:
			failed++
		}
	}

	age := formatDuration(time.Since(m.CreatedAt))
	fmt.Printf("  %s: %q [%s] %d/%d tasks done", m.ID, m.Title, m.Status, done, len(tasks))
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Printf(" (%s old)\n", age)

	if m.AwaitingHumanTaskID != "" {
		fmt.Printf("    awaiting human input on task %s\n", m.AwaitingHumanTaskID)
	}
	return nil
}

func displayAgents(agents []*models.Agent) {
	if len(agents) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Agents:")
	for _, a := range agents {
		fmt.Printf("  %s (%s) [%s] %d completed / %d failed\n",
			a.Name, a.Role, a.Status, a.TasksCompleted, a.TasksFailed)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
