// Package models defines the core data types shared across the
// orchestrator: conversations, codebases, isolation environments,
// sessions, and discovered workflow definitions.
package models

import "time"

// Conversation identifies a logical chat thread on a platform and tracks
// the codebase/worktree it is currently attached to.
type Conversation struct {
	ID                 int64
	PlatformType       string
	PlatformConvID     string
	AIAssistantType    string
	CodebaseID         *int64
	Cwd                *string
	IsolationEnvID     *int64
	LastActivityAt     time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Codebase is a clonable repository already materialized under a
// canonical path. Read-only to the core.
type Codebase struct {
	ID              int64
	Name            string
	RepositoryURL   string
	DefaultCwd      string
	AIAssistantType string
	Commands        map[string]CommandSpec
	CreatedAt       time.Time
}

// CommandSpec describes a deterministic command-invoke target.
type CommandSpec struct {
	Path        string // relative markdown file, relative to cwd
	Description string
}

// WorkflowType enumerates the logical workflow identities an isolation
// environment can be scoped to.
type WorkflowType string

const (
	WorkflowThread WorkflowType = "thread"
	WorkflowIssue  WorkflowType = "issue"
	WorkflowPR     WorkflowType = "pr"
	WorkflowReview WorkflowType = "review"
)

// EnvironmentStatus tracks the lifecycle of an IsolationEnvironment.
type EnvironmentStatus string

const (
	EnvironmentActive    EnvironmentStatus = "active"
	EnvironmentDestroyed EnvironmentStatus = "destroyed"
)

// IsolationEnvironment is a database-tracked git worktree paired with a
// logical workflow identity. Once Destroyed it never returns to Active
// (I3 in the base spec).
type IsolationEnvironment struct {
	ID                int64
	CodebaseID        int64
	WorkflowType       WorkflowType
	WorkflowID         string
	Provider           string
	WorkingPath        string
	BranchName         string
	Status             EnvironmentStatus
	CreatedByPlatform  string
	CreatedAt          time.Time
	Metadata           map[string]string
}

// Session is an assistant conversation turn sequence. At most one Session
// per conversation may have Active == true.
type Session struct {
	ID                int64
	ConversationID    int64
	CodebaseID        int64
	AIAssistantType   string
	AssistantSessionID *string
	Active            bool
	Metadata          map[string]string
	StartedAt         time.Time
	EndedAt           *time.Time
}

// MetaLastCommand is the well-known Session.Metadata key recording the most
// recent command name that drove the turn (§4.K step 8 of the spec).
const MetaLastCommand = "lastCommand"

// WorkflowDefinition is a discovered, read-only YAML workflow. Registries
// are scoped to a single cwd and never mutated by the core.
type WorkflowDefinition struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Steps       []WorkflowStep `yaml:"steps"`
}

// WorkflowStep is one ordered step of a WorkflowDefinition, referencing a
// command template by name.
type WorkflowStep struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	With    map[string]string `yaml:"with,omitempty"`
}

// RouterContext is transient context extracted from an inbound message
// (or supplied explicitly by a platform adapter) used to build the
// workflow-aware router prompt.
type RouterContext struct {
	PlatformType   string
	Title          string
	Labels         []string
	IsPullRequest  bool
	WorkflowType   string
	ThreadHistory  string
}

// IsolationHints are transient hints a platform adapter can supply to
// steer isolation resolution (link-based sharing, skill adoption, PR
// worktree creation).
type IsolationHints struct {
	WorkflowType  string
	WorkflowID    string
	PRBranch      string
	PRSHA         string
	IsForkPR      bool
	LinkedIssues  []string
	LinkedPRs     []string
}
