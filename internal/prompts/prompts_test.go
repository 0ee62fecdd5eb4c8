package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInstructionKnownRole(t *testing.T) {
	r := NewRegistry()

	got := r.Instruction("senior-software-engineer", 7)
	if !strings.Contains(got, "Senior Software Engineer") {
		t.Error("expected the role override in the instruction")
	}
	if !strings.Contains(got, "at most 7 questions") {
		t.Error("expected the question cap in the instruction")
	}
	if !strings.Contains(got, `"The interview has ended"`) {
		t.Error("expected the termination phrase contract in the instruction")
	}
}

func TestInstructionUnknownRole(t *testing.T) {
	r := NewRegistry()

	got := r.Instruction("quantum-plumber", 5)
	if !strings.Contains(got, "quantum plumber") {
		t.Errorf("expected humanized role tag in fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "at most 5 questions") {
		t.Error("expected the question cap in the instruction")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.json")
	if err := os.WriteFile(path, []byte(`{"site-reliability-engineer": "Ask about incidents and SLOs."}`), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if !strings.Contains(r.Instruction("site-reliability-engineer", 7), "incidents and SLOs") {
		t.Error("custom role not registered")
	}
	// Built-in roles survive the merge.
	if !strings.Contains(r.Instruction("junior-software-engineer", 7), "Junior Software Engineer") {
		t.Error("built-in role lost after merge")
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"non-string value": `{"role": 42}`,
		"empty object":     `{}`,
		"bad role tag":     `{"Bad Tag!": "text"}`,
		"empty override":   `{"role": ""}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.json")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			r := NewRegistry()
			if err := r.LoadFile(path); err == nil {
				t.Errorf("expected validation error for %s", name)
			}
		})
	}
}
