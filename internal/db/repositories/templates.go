package repositories

import (
	"database/sql"
	"time"
)

// TemplateRepo stores the named global templates CommandRouter's
// template-* commands manage, and the "router"/unknown-command fallback
// path reads from (§4.K step 2/3).
type TemplateRepo struct {
	db *sql.DB
}

func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

// Get returns a template's content, or sql.ErrNoRows if it doesn't exist.
func (r *TemplateRepo) Get(name string) (string, error) {
	var content string
	err := r.db.QueryRow(`SELECT content FROM templates WHERE name = ?`, name).Scan(&content)
	return content, err
}

// Set creates or overwrites a template (template-add).
func (r *TemplateRepo) Set(name, content string) error {
	_, err := r.db.Exec(
		`INSERT INTO templates (name, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		name, content, time.Now(),
	)
	return err
}

// Delete removes a template (template-delete). Deleting a name that
// doesn't exist is not an error.
func (r *TemplateRepo) Delete(name string) error {
	_, err := r.db.Exec(`DELETE FROM templates WHERE name = ?`, name)
	return err
}

// List returns every template name, sorted.
func (r *TemplateRepo) List() ([]string, error) {
	rows, err := r.db.Query(`SELECT name FROM templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
