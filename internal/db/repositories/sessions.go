package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/archon-run/archon/internal/models"
)

// SessionRepo implements the Session side of §4.E/§4.K: at most one
// active session per conversation, with assistant resume tokens and the
// lastCommand metadata key the orchestrator consults to rotate the session
// on a plan -> execute transition.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create starts a new active session for a conversation. Callers are
// responsible for deactivating any prior active session first (Rotate
// does both atomically).
func (r *SessionRepo) Create(s *models.Session) (*models.Session, error) {
	metaJSON, err := json.Marshal(s.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	res, err := r.db.Exec(
		`INSERT INTO sessions (conversation_id, codebase_id, ai_assistant_type, assistant_session_id, active, metadata_json)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		s.ConversationID, s.CodebaseID, s.AIAssistantType, s.AssistantSessionID, string(metaJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

func (r *SessionRepo) GetByID(id int64) (*models.Session, error) {
	row := r.db.QueryRow(
		`SELECT id, conversation_id, codebase_id, ai_assistant_type, assistant_session_id, active,
		        metadata_json, started_at, ended_at
		 FROM sessions WHERE id = ?`, id,
	)
	return scanSession(row)
}

// GetActiveByConversation returns the single active session for a
// conversation, or sql.ErrNoRows if none exists yet.
func (r *SessionRepo) GetActiveByConversation(conversationID int64) (*models.Session, error) {
	row := r.db.QueryRow(
		`SELECT id, conversation_id, codebase_id, ai_assistant_type, assistant_session_id, active,
		        metadata_json, started_at, ended_at
		 FROM sessions WHERE conversation_id = ? AND active = 1`, conversationID,
	)
	return scanSession(row)
}

// Deactivate ends a session, stamping ended_at.
func (r *SessionRepo) Deactivate(id int64) error {
	_, err := r.db.Exec(
		`UPDATE sessions SET active = 0, ended_at = ? WHERE id = ? AND active = 1`,
		time.Now(), id,
	)
	return err
}

// PersistResumeToken records the assistant-side session/resume id
// returned by a streaming call, so the next turn can resume it.
func (r *SessionRepo) PersistResumeToken(id int64, assistantSessionID string) error {
	_, err := r.db.Exec(`UPDATE sessions SET assistant_session_id = ? WHERE id = ?`, assistantSessionID, id)
	return err
}

// UpdateMetadata overwrites a session's metadata blob in place.
func (r *SessionRepo) UpdateMetadata(id int64, metadata map[string]string) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.db.Exec(`UPDATE sessions SET metadata_json = ? WHERE id = ?`, string(metaJSON), id)
	return err
}

// SetLastCommand records the command name that drove this turn under the
// well-known models.MetaLastCommand key, preserving the rest of the
// metadata blob (§4.K step 8).
func (r *SessionRepo) SetLastCommand(id int64, command string) error {
	s, err := r.GetByID(id)
	if err != nil {
		return err
	}
	meta := s.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	meta[models.MetaLastCommand] = command
	return r.UpdateMetadata(id, meta)
}

// Rotate atomically deactivates the conversation's current active session
// (if any) and creates a fresh one, so a session-breaking event (the
// orchestrator's plan -> execute transition) never leaves two sessions
// active at once.
func (r *SessionRepo) Rotate(conversationID, codebaseID int64, aiAssistantType string) (*models.Session, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE sessions SET active = 0, ended_at = ? WHERE conversation_id = ? AND active = 1`,
		time.Now(), conversationID,
	); err != nil {
		return nil, fmt.Errorf("deactivate prior session: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO sessions (conversation_id, codebase_id, ai_assistant_type, active, metadata_json)
		 VALUES (?, ?, ?, 1, '{}')`,
		conversationID, codebaseID, aiAssistantType,
	)
	if err != nil {
		return nil, fmt.Errorf("create rotated session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

func scanSession(row scannable) (*models.Session, error) {
	var s models.Session
	var assistantSessionID sql.NullString
	var metaJSON string
	var endedAt sql.NullTime

	if err := row.Scan(&s.ID, &s.ConversationID, &s.CodebaseID, &s.AIAssistantType, &assistantSessionID,
		&s.Active, &metaJSON, &s.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	if assistantSessionID.Valid {
		s.AssistantSessionID = &assistantSessionID.String
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	if metaJSON == "" {
		metaJSON = "{}"
	}
	if err := json.Unmarshal([]byte(metaJSON), &s.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata_json for session %d: %w", s.ID, err)
	}
	return &s, nil
}
