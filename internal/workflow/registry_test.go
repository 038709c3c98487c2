package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscover_MissingDirYieldsEmptyRegistryNoError(t *testing.T) {
	reg, err := Discover(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reg.Empty() {
		t.Fatalf("expected an empty registry for a missing directory")
	}
}

func TestDiscover_ParsesWorkflowFilesAndDefaultsName(t *testing.T) {
	dir := t.TempDir()
	content := "description: fixes a reported bug\nsteps:\n  - name: plan\n    command: plan\n"
	if err := os.WriteFile(filepath.Join(dir, "fix-bug.workflow.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Empty() {
		t.Fatalf("expected the discovered workflow to be registered")
	}
	def, ok := reg.Lookup("fix-bug")
	if !ok {
		t.Fatalf("expected a workflow named after its filename when name is omitted from the YAML")
	}
	if def.Description != "fixes a reported bug" {
		t.Fatalf("unexpected description: %q", def.Description)
	}
	if len(def.Steps) != 1 || def.Steps[0].Command != "plan" {
		t.Fatalf("unexpected steps: %+v", def.Steps)
	}
}

func TestDiscover_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a workflow"), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reg.Empty() {
		t.Fatalf("expected non-workflow files to be ignored")
	}
}

func TestRegistry_LookupMiss(t *testing.T) {
	reg := &Registry{}
	if _, ok := reg.Lookup("anything"); ok {
		t.Fatalf("expected a lookup miss against an empty registry")
	}
}
