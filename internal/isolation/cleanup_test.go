package isolation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsage_SumsFileSizesRecursively(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.txt"), []byte("1234567890"), 0644); err != nil {
		t.Fatal(err)
	}

	size, err := DiskUsage(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 15 {
		t.Fatalf("expected 15 bytes total, got %d", size)
	}
}
