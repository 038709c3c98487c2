// Package repositories implements the SessionStore/ConversationStore
// collaborator contracts (§3/§4.E/§4.F of the orchestrator spec) against
// SQLite using database/sql directly, in the teacher's repository style.
package repositories

import (
	"database/sql"

	"github.com/archon-run/archon/internal/db"
)

// Repositories bundles every repository the orchestrator needs, built
// from a single shared connection.
type Repositories struct {
	Conversations *ConversationRepo
	Codebases     *CodebaseRepo
	Environments  *EnvironmentRepo
	Sessions      *SessionRepo
	Templates     *TemplateRepo

	db db.Database
}

// New wires every repository against database.Conn().
func New(database db.Database) *Repositories {
	conn := database.Conn()
	return &Repositories{
		Conversations: NewConversationRepo(conn),
		Codebases:     NewCodebaseRepo(conn),
		Environments:  NewEnvironmentRepo(conn),
		Sessions:      NewSessionRepo(conn),
		Templates:     NewTemplateRepo(conn),
		db:            database,
	}
}

// BeginTx starts a database transaction for the rare operation that needs
// more than single-row atomicity (SessionRepo.Rotate opens its own).
func (r *Repositories) BeginTx() (*sql.Tx, error) {
	return r.db.Conn().Begin()
}
