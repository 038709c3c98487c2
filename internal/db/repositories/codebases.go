package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/archon-run/archon/internal/models"
)

// CodebaseRepo reads already-registered codebases. The core treats
// codebases as read-only: operators add/edit them out of band.
type CodebaseRepo struct {
	db *sql.DB
}

func NewCodebaseRepo(db *sql.DB) *CodebaseRepo {
	return &CodebaseRepo{db: db}
}

func (r *CodebaseRepo) GetByID(id int64) (*models.Codebase, error) {
	row := r.db.QueryRow(
		`SELECT id, name, repository_url, default_cwd, ai_assistant_type, commands_json, created_at
		 FROM codebases WHERE id = ?`, id,
	)
	return scanCodebase(row)
}

func (r *CodebaseRepo) GetByName(name string) (*models.Codebase, error) {
	row := r.db.QueryRow(
		`SELECT id, name, repository_url, default_cwd, ai_assistant_type, commands_json, created_at
		 FROM codebases WHERE name = ?`, name,
	)
	return scanCodebase(row)
}

func (r *CodebaseRepo) List() ([]*models.Codebase, error) {
	rows, err := r.db.Query(
		`SELECT id, name, repository_url, default_cwd, ai_assistant_type, commands_json, created_at
		 FROM codebases ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Codebase
	for rows.Next() {
		c, err := scanCodebaseRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCodebase(row scannable) (*models.Codebase, error) {
	return scanCodebaseRows(row)
}

func scanCodebaseRows(row scannable) (*models.Codebase, error) {
	var c models.Codebase
	var commandsJSON string
	if err := row.Scan(&c.ID, &c.Name, &c.RepositoryURL, &c.DefaultCwd, &c.AIAssistantType, &commandsJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	if commandsJSON == "" {
		commandsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(commandsJSON), &c.Commands); err != nil {
		return nil, fmt.Errorf("decode commands_json for codebase %d: %w", c.ID, err)
	}
	return &c, nil
}
