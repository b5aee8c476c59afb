package state

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/squad/pkg/models"
)

const agentColumns = `id, name, role, status, current_mission_id, mission_history,
	tasks_completed, tasks_failed, success_rate, average_duration, version, created_at`

// CreateAgent inserts a new agent document. Version is initialized to 1.
// Agent names are unique; inserting a duplicate name fails.
func (db *DB) CreateAgent(a *models.Agent) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if a.Version == 0 {
		a.Version = 1
	}

	history, err := marshalJSON(a.MissionHistory)
	if err != nil {
		return fmt.Errorf("marshal mission history: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO agents (`+agentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.Name, a.Role, string(a.Status), a.CurrentMissionID, history,
		a.TasksCompleted, a.TasksFailed, a.SuccessRate, a.AverageDuration,
		a.Version, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (db *DB) GetAgent(id string) (*models.Agent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "agent", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// GetAgentByName retrieves an agent by its unique name.
func (db *DB) GetAgentByName(name string) (*models.Agent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE name = ?`, name)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "agent", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("get agent by name: %w", err)
	}
	return a, nil
}

// UpdateAgent writes the agent document guarded by its version counter,
// incrementing it on success.
func (db *DB) UpdateAgent(a *models.Agent) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	history, err := marshalJSON(a.MissionHistory)
	if err != nil {
		return fmt.Errorf("marshal mission history: %w", err)
	}

	res, err := db.conn.Exec(`
		UPDATE agents SET
			name = ?, role = ?, status = ?, current_mission_id = ?,
			mission_history = ?, tasks_completed = ?, tasks_failed = ?,
			success_rate = ?, average_duration = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		a.Name, a.Role, string(a.Status), a.CurrentMissionID, history,
		a.TasksCompleted, a.TasksFailed, a.SuccessRate, a.AverageDuration,
		a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := db.conn.QueryRow("SELECT COUNT(1) FROM agents WHERE id = ?", a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update agent: %w", err)
		}
		if exists == 0 {
			return &NotFoundError{Kind: "agent", ID: a.ID}
		}
		return ErrVersionConflict
	}

	a.Version++
	return nil
}

// FindAgentsByRole returns agents with the given role, ordered by name.
func (db *DB) FindAgentsByRole(role string) ([]*models.Agent, error) {
	return db.queryAgents(`SELECT `+agentColumns+` FROM agents WHERE role = ? ORDER BY name`, role)
}

// ListAgents returns all agents, ordered by name.
func (db *DB) ListAgents() ([]*models.Agent, error) {
	return db.queryAgents(`SELECT ` + agentColumns + ` FROM agents ORDER BY name`)
}

func (db *DB) queryAgents(query string, args ...interface{}) ([]*models.Agent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// scanAgent reads one agent row.
func scanAgent(row scanner) (*models.Agent, error) {
	var a models.Agent
	var status, history, createdAt string

	err := row.Scan(
		&a.ID, &a.Name, &a.Role, &status, &a.CurrentMissionID, &history,
		&a.TasksCompleted, &a.TasksFailed, &a.SuccessRate, &a.AverageDuration,
		&a.Version, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = models.AgentStatus(status)
	if err := unmarshalJSON(history, &a.MissionHistory); err != nil {
		return nil, fmt.Errorf("unmarshal mission history: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}
