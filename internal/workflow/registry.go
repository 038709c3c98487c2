// Package workflow discovers per-codebase YAML workflow definitions and
// builds the workflow-aware router prompt (§4.I of the orchestrator
// spec), grounded on the teacher's internal/workflows glob-and-parse
// loader but simplified to the orchestrator's flat name/description/steps
// shape instead of a Serverless-Workflow state machine.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/archon-run/archon/internal/models"
)

// Registry holds the workflows discovered under a single cwd. Registries
// are scoped per directory and never mutated by the core.
type Registry struct {
	Definitions []models.WorkflowDefinition
}

// Discover globs *.workflow.yaml / *.workflow.yml files directly under
// cwd and parses each into a WorkflowDefinition. A missing directory (or
// simply no matching files) yields an empty, non-error Registry — §7
// classifies that case as "silent" (ENOENT-equivalent).
func Discover(cwd string) (*Registry, error) {
	reg := &Registry{}

	if _, err := os.Stat(cwd); os.IsNotExist(err) {
		return reg, nil
	}

	var files []string
	for _, pattern := range []string{"*.workflow.yaml", "*.workflow.yml"} {
		matches, err := filepath.Glob(filepath.Join(cwd, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var def models.WorkflowDefinition
		if err := yaml.Unmarshal(content, &def); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if def.Name == "" {
			def.Name = workflowNameFromPath(path)
		}
		reg.Definitions = append(reg.Definitions, def)
	}

	return reg, nil
}

func workflowNameFromPath(path string) string {
	base := filepath.Base(path)
	for _, suffix := range []string{".workflow.yaml", ".workflow.yml"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}

// Lookup returns the named workflow, if discovered.
func (r *Registry) Lookup(name string) (models.WorkflowDefinition, bool) {
	for _, d := range r.Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return models.WorkflowDefinition{}, false
}

// Empty reports whether no workflows were discovered, the signal the
// orchestrator uses to fall back to the global router template (§4.K
// step 3, "no workflows" branch).
func (r *Registry) Empty() bool {
	return len(r.Definitions) == 0
}
