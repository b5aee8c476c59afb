package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/squad/pkg/models"
)

const taskColumns = `id, mission_id, title, description, type, status, assigned_to,
	dependencies, retry_count, max_retries, retry_history, auditor_review_id,
	human_task_id, origin_task_id, input, output, error, estimate_minutes, version,
	created_at, started_at, completed_at`

// CreateTask inserts a new task document. Version is initialized to 1.
func (db *DB) CreateTask(t *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if t.Version == 0 {
		t.Version = 1
	}

	deps, err := marshalJSON(t.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	history, err := marshalJSON(t.RetryHistory)
	if err != nil {
		return fmt.Errorf("marshal retry history: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.MissionID, t.Title, t.Description, string(t.Type), string(t.Status),
		t.AssignedTo, deps, t.RetryCount, t.MaxRetries, history, t.AuditorReviewID,
		t.HumanTaskID, t.OriginTaskID, t.Input, t.Output, t.Error, t.EstimateMinutes, t.Version,
		formatTime(t.CreatedAt), formatTimePtr(t.StartedAt), formatTimePtr(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(id string) (*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes the task document guarded by its version counter.
// The version is incremented on success; a stale version yields
// ErrVersionConflict and an unknown ID yields NotFoundError.
func (db *DB) UpdateTask(t *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	deps, err := marshalJSON(t.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	history, err := marshalJSON(t.RetryHistory)
	if err != nil {
		return fmt.Errorf("marshal retry history: %w", err)
	}

	res, err := db.conn.Exec(`
		UPDATE tasks SET
			mission_id = ?, title = ?, description = ?, type = ?, status = ?,
			assigned_to = ?, dependencies = ?, retry_count = ?, max_retries = ?,
			retry_history = ?, auditor_review_id = ?, human_task_id = ?,
			origin_task_id = ?, input = ?, output = ?, error = ?, estimate_minutes = ?,
			version = version + 1, started_at = ?, completed_at = ?
		WHERE id = ? AND version = ?
	`,
		t.MissionID, t.Title, t.Description, string(t.Type), string(t.Status),
		t.AssignedTo, deps, t.RetryCount, t.MaxRetries, history,
		t.AuditorReviewID, t.HumanTaskID, t.OriginTaskID, t.Input, t.Output, t.Error,
		t.EstimateMinutes, formatTimePtr(t.StartedAt), formatTimePtr(t.CompletedAt),
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := db.conn.QueryRow("SELECT COUNT(1) FROM tasks WHERE id = ?", t.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if exists == 0 {
			return &NotFoundError{Kind: "task", ID: t.ID}
		}
		return ErrVersionConflict
	}

	t.Version++
	return nil
}

// DeleteTask removes a task document.
func (db *DB) DeleteTask(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected == 0 {
		return &NotFoundError{Kind: "task", ID: id}
	}
	return nil
}

// FindTasksByMission returns a mission's tasks matching the filter,
// ordered by creation time.
func (db *DB) FindTasksByMission(missionID string, filter TaskFilter) ([]*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE mission_id = ?`
	args := []interface{}{missionID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.AssignedTo != "" {
		query += " AND assigned_to = ?"
		args = append(args, filter.AssignedTo)
	}
	query += " ORDER BY created_at, id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ClaimTask atomically claims a pending task for an agent. The guard is a
// single conditional UPDATE: the task must be pending, not under auditor
// review, and unassigned or already assigned to the claiming agent.
// Returns false when another worker holds the task or the guard fails.
func (db *DB) ClaimTask(taskID, agentID string, now time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`
		UPDATE tasks SET
			status = ?, assigned_to = ?, started_at = ?, version = version + 1
		WHERE id = ?
			AND status = ?
			AND auditor_review_id = ''
			AND (assigned_to = '' OR assigned_to = ?)
	`,
		string(models.TaskStatusInProgress), agentID, formatTime(now),
		taskID, string(models.TaskStatusPending), agentID,
	)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	return affected > 0, nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTask reads one task row.
func scanTask(row scanner) (*models.Task, error) {
	var t models.Task
	var taskType, status, deps, history, createdAt, startedAt, completedAt string

	err := row.Scan(
		&t.ID, &t.MissionID, &t.Title, &t.Description, &taskType, &status,
		&t.AssignedTo, &deps, &t.RetryCount, &t.MaxRetries, &history,
		&t.AuditorReviewID, &t.HumanTaskID, &t.OriginTaskID, &t.Input, &t.Output, &t.Error,
		&t.EstimateMinutes, &t.Version, &createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = models.TaskType(taskType)
	t.Status = models.TaskStatus(status)
	if err := unmarshalJSON(deps, &t.Dependencies); err != nil {
		return nil, fmt.Errorf("unmarshal dependencies: %w", err)
	}
	if err := unmarshalJSON(history, &t.RetryHistory); err != nil {
		return nil, fmt.Errorf("unmarshal retry history: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if t.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	return &t, nil
}
