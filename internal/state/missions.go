package state

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/squad/pkg/models"
)

const missionColumns = `id, title, goal, status, squad_lead_id, orchestration_log,
	awaiting_human_task_id, version, created_at, completed_at`

// CreateMission inserts a new mission document. Version is initialized to 1.
func (db *DB) CreateMission(m *models.Mission) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if m.Version == 0 {
		m.Version = 1
	}

	log, err := marshalJSON(m.OrchestrationLog)
	if err != nil {
		return fmt.Errorf("marshal orchestration log: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO missions (`+missionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.Title, m.Goal, string(m.Status), m.SquadLeadID, log,
		m.AwaitingHumanTaskID, m.Version, formatTime(m.CreatedAt),
		formatTimePtr(m.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert mission: %w", err)
	}
	return nil
}

// GetMission retrieves a mission by ID.
func (db *DB) GetMission(id string) (*models.Mission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`SELECT `+missionColumns+` FROM missions WHERE id = ?`, id)

	var m models.Mission
	var status, log, squadLead, awaitingHuman, goal, createdAt, completedAt string
	err := row.Scan(&m.ID, &m.Title, &goal, &status, &squadLead, &log,
		&awaitingHuman, &m.Version, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "mission", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}

	m.Goal = goal
	m.Status = models.MissionStatus(status)
	m.SquadLeadID = squadLead
	m.AwaitingHumanTaskID = awaitingHuman
	if err := unmarshalJSON(log, &m.OrchestrationLog); err != nil {
		return nil, fmt.Errorf("unmarshal orchestration log: %w", err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if m.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	return &m, nil
}

// ListMissions returns all missions, newest first.
func (db *DB) ListMissions() ([]*models.Mission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`SELECT ` + missionColumns + ` FROM missions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	var missions []*models.Mission
	for rows.Next() {
		var m models.Mission
		var status, log, squadLead, awaitingHuman, goal, createdAt, completedAt string
		err := rows.Scan(&m.ID, &m.Title, &goal, &status, &squadLead, &log,
			&awaitingHuman, &m.Version, &createdAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		m.Goal = goal
		m.Status = models.MissionStatus(status)
		m.SquadLeadID = squadLead
		m.AwaitingHumanTaskID = awaitingHuman
		if err := unmarshalJSON(log, &m.OrchestrationLog); err != nil {
			return nil, fmt.Errorf("unmarshal orchestration log: %w", err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if m.CompletedAt, err = parseTimePtr(completedAt); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		missions = append(missions, &m)
	}
	return missions, rows.Err()
}

// UpdateMission writes the mission document guarded by its version
// counter, incrementing it on success.
func (db *DB) UpdateMission(m *models.Mission) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	log, err := marshalJSON(m.OrchestrationLog)
	if err != nil {
		return fmt.Errorf("marshal orchestration log: %w", err)
	}

	res, err := db.conn.Exec(`
		UPDATE missions SET
			title = ?, goal = ?, status = ?, squad_lead_id = ?,
			orchestration_log = ?, awaiting_human_task_id = ?,
			version = version + 1, completed_at = ?
		WHERE id = ? AND version = ?
	`,
		m.Title, m.Goal, string(m.Status), m.SquadLeadID, log,
		m.AwaitingHumanTaskID, formatTimePtr(m.CompletedAt),
		m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("update mission: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mission: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := db.conn.QueryRow("SELECT COUNT(1) FROM missions WHERE id = ?", m.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update mission: %w", err)
		}
		if exists == 0 {
			return &NotFoundError{Kind: "mission", ID: m.ID}
		}
		return ErrVersionConflict
	}

	m.Version++
	return nil
}
