package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/archon-run/archon/internal/models"
)

// EnvironmentRepo implements the IsolationEnvironment side of §4.C:
// identity is (codebase_id, workflow_type, workflow_id) while active, and
// once destroyed an environment never becomes active again (I3).
type EnvironmentRepo struct {
	db *sql.DB
}

func NewEnvironmentRepo(db *sql.DB) *EnvironmentRepo {
	return &EnvironmentRepo{db: db}
}

// Create records a newly materialized worktree as active.
func (r *EnvironmentRepo) Create(e *models.IsolationEnvironment) (*models.IsolationEnvironment, error) {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	res, err := r.db.Exec(
		`INSERT INTO isolation_environments
		   (codebase_id, workflow_type, workflow_id, provider, working_path, branch_name, status, created_by_platform, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CodebaseID, string(e.WorkflowType), e.WorkflowID, e.Provider, e.WorkingPath, e.BranchName,
		string(models.EnvironmentActive), e.CreatedByPlatform, string(metaJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("create isolation environment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

func (r *EnvironmentRepo) GetByID(id int64) (*models.IsolationEnvironment, error) {
	row := r.db.QueryRow(
		`SELECT id, codebase_id, workflow_type, workflow_id, provider, working_path, branch_name,
		        status, created_by_platform, created_at, metadata_json
		 FROM isolation_environments WHERE id = ?`, id,
	)
	return scanEnvironment(row)
}

// GetActiveByIdentity finds the currently active environment, if any, for
// a given (codebase, workflow_type, workflow_id) triple — the lookup that
// backs isolation reuse (§4.C "reuse" path).
func (r *EnvironmentRepo) GetActiveByIdentity(codebaseID int64, workflowType models.WorkflowType, workflowID string) (*models.IsolationEnvironment, error) {
	row := r.db.QueryRow(
		`SELECT id, codebase_id, workflow_type, workflow_id, provider, working_path, branch_name,
		        status, created_by_platform, created_at, metadata_json
		 FROM isolation_environments
		 WHERE codebase_id = ? AND workflow_type = ? AND workflow_id = ? AND status = ?`,
		codebaseID, string(workflowType), workflowID, string(models.EnvironmentActive),
	)
	return scanEnvironment(row)
}

// MarkDestroyed flips status to destroyed. Safe to call more than once;
// it never moves an environment back to active (I3).
func (r *EnvironmentRepo) MarkDestroyed(id int64) error {
	_, err := r.db.Exec(
		`UPDATE isolation_environments SET status = ? WHERE id = ? AND status = ?`,
		string(models.EnvironmentDestroyed), id, string(models.EnvironmentActive),
	)
	return err
}

// ListActiveByCodebase lists active environments oldest-first, the order
// the cleanup service evicts from when making room (§4.C cleanup path).
func (r *EnvironmentRepo) ListActiveByCodebase(codebaseID int64) ([]*models.IsolationEnvironment, error) {
	rows, err := r.db.Query(
		`SELECT id, codebase_id, workflow_type, workflow_id, provider, working_path, branch_name,
		        status, created_by_platform, created_at, metadata_json
		 FROM isolation_environments
		 WHERE codebase_id = ? AND status = ?
		 ORDER BY created_at ASC`,
		codebaseID, string(models.EnvironmentActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.IsolationEnvironment
	for rows.Next() {
		e, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountActiveByCodebase backs the MAX_WORKTREES_PER_CODEBASE enforcement
// in the isolation resolver.
func (r *EnvironmentRepo) CountActiveByCodebase(codebaseID int64) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM isolation_environments WHERE codebase_id = ? AND status = ?`,
		codebaseID, string(models.EnvironmentActive),
	).Scan(&n)
	return n, err
}

// UpdateMetadata overwrites the environment's metadata blob, used to
// record link-based sharing/skill-adoption bookkeeping.
func (r *EnvironmentRepo) UpdateMetadata(id int64, metadata map[string]string) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.db.Exec(`UPDATE isolation_environments SET metadata_json = ? WHERE id = ?`, string(metaJSON), id)
	return err
}

func scanEnvironment(row scannable) (*models.IsolationEnvironment, error) {
	var e models.IsolationEnvironment
	var workflowType, status, metaJSON string
	var createdAt time.Time

	if err := row.Scan(&e.ID, &e.CodebaseID, &workflowType, &e.WorkflowID, &e.Provider, &e.WorkingPath,
		&e.BranchName, &status, &e.CreatedByPlatform, &createdAt, &metaJSON); err != nil {
		return nil, err
	}
	e.WorkflowType = models.WorkflowType(workflowType)
	e.Status = models.EnvironmentStatus(status)
	e.CreatedAt = createdAt
	if metaJSON == "" {
		metaJSON = "{}"
	}
	if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata_json for environment %d: %w", e.ID, err)
	}
	return &e, nil
}
