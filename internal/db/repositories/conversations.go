package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/archon-run/archon/internal/models"
)

// ConversationRepo implements the ConversationStore collaborator (§4.F):
// conversation identity, parent-thread inheritance, and the
// isolation_env_id/cwd pair the resolver keeps in sync.
type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// FindOrCreate looks up a conversation by its (platform_type,
// platform_conv_id) identity, creating it on first observation.
func (r *ConversationRepo) FindOrCreate(platformType, platformConvID string) (*models.Conversation, error) {
	conv, err := r.findByIdentity(platformType, platformConvID)
	if err == nil {
		return conv, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	res, err := r.db.Exec(
		`INSERT INTO conversations (platform_type, platform_conv_id) VALUES (?, ?)`,
		platformType, platformConvID,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.Get(id)
}

func (r *ConversationRepo) findByIdentity(platformType, platformConvID string) (*models.Conversation, error) {
	row := r.db.QueryRow(
		`SELECT id, platform_type, platform_conv_id, ai_assistant_type, codebase_id, cwd,
		        isolation_env_id, last_activity_at, created_at, updated_at
		 FROM conversations WHERE platform_type = ? AND platform_conv_id = ?`,
		platformType, platformConvID,
	)
	return scanConversation(row)
}

// Get loads a conversation by its synthetic id.
func (r *ConversationRepo) Get(id int64) (*models.Conversation, error) {
	row := r.db.QueryRow(
		`SELECT id, platform_type, platform_conv_id, ai_assistant_type, codebase_id, cwd,
		        isolation_env_id, last_activity_at, created_at, updated_at
		 FROM conversations WHERE id = ?`,
		id,
	)
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (*models.Conversation, error) {
	var c models.Conversation
	var codebaseID sql.NullInt64
	var cwd sql.NullString
	var envID sql.NullInt64

	err := row.Scan(&c.ID, &c.PlatformType, &c.PlatformConvID, &c.AIAssistantType,
		&codebaseID, &cwd, &envID, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if codebaseID.Valid {
		c.CodebaseID = &codebaseID.Int64
	}
	if cwd.Valid {
		c.Cwd = &cwd.String
	}
	if envID.Valid {
		c.IsolationEnvID = &envID.Int64
	}
	return &c, nil
}

// Fields is a dynamic field list for Update: only columns present in the
// map are written, per §5 "all updates use dynamic field lists".
type Fields map[string]any

// Update writes only the given fields plus updated_at, matching the
// dynamic-field-list policy of §5 of the orchestrator spec.
func (r *ConversationRepo) Update(id int64, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for col, val := range fields {
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE conversations SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	_, err := r.db.Exec(query, args...)
	return err
}

// InheritFromParent copies codebase_id and cwd from a parent conversation
// into this one, if this one has no codebase_id yet (§4.K step 1). A
// missing parent is treated as "nothing to inherit", not an error.
func (r *ConversationRepo) InheritFromParent(childID, parentID int64) error {
	child, err := r.Get(childID)
	if err != nil {
		return err
	}
	if child.CodebaseID != nil {
		return nil
	}

	parent, err := r.Get(parentID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if parent.CodebaseID == nil {
		return nil
	}

	fields := Fields{"codebase_id": *parent.CodebaseID}
	if parent.Cwd != nil {
		fields["cwd"] = *parent.Cwd
	}
	return r.Update(childID, fields)
}

// TouchActivity bumps last_activity_at to now.
func (r *ConversationRepo) TouchActivity(id int64) error {
	_, err := r.db.Exec(`UPDATE conversations SET last_activity_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// ClearIsolation sets isolation_env_id (and cwd, if clearCwd) to NULL,
// part of the stale-reference repair path (§4.C).
func (r *ConversationRepo) ClearIsolation(id int64, clearCwd bool) error {
	if clearCwd {
		_, err := r.db.Exec(`UPDATE conversations SET isolation_env_id = NULL, cwd = NULL, updated_at = ? WHERE id = ?`, time.Now(), id)
		return err
	}
	_, err := r.db.Exec(`UPDATE conversations SET isolation_env_id = NULL, updated_at = ? WHERE id = ?`, time.Now(), id)
	return err
}
