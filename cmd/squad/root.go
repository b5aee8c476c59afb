package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "squad",
	Short: "Mission coordination for AI agent squads",
	Long: `Squad coordinates teams of AI agents working through missions.

A mission is decomposed into a dependency graph of tasks by a squad lead.
Agents claim tasks as their dependencies complete, failures are retried
automatically, and repeated failures escalate to an auditor who can retry,
refine, reassign, or hand the problem to a human.

Core capabilities:
- Materializes plans into tasks and agent assignments
- Dispatches tasks in dependency order with atomic claims
- Retries failures and escalates exhausted tasks to audit
- Tracks agent performance to guide reassignment
- Serves a REST API for agents and operators`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
