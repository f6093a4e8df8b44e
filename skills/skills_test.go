package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write skill fixture: %v", err)
	}
}

func TestDescriptionsListsAllSkills(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a.md", "---\nname: alpha\ndescription: does alpha things\ntags: [fast]\n---\nBody of alpha.\n")
	writeSkill(t, dir, "b.md", "---\nname: beta\ndescription: does beta things\n---\nBody of beta.\n")

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out := cat.Descriptions()
	if !strings.Contains(out, "alpha: does alpha things") {
		t.Errorf("missing alpha description: %q", out)
	}
	if !strings.Contains(out, "beta: does beta things") {
		t.Errorf("missing beta description: %q", out)
	}
}

func TestLoadReturnsWrappedBody(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a.md", "---\nname: alpha\ndescription: d\n---\nBody of alpha.\n")

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	body, err := cat.Load("alpha")
	if err != nil {
		t.Fatalf("load skill: %v", err)
	}
	if !strings.Contains(body, `<skill name="alpha">`) || !strings.Contains(body, "Body of alpha.") {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestLoadUnknownSkillListsAvailable(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a.md", "---\nname: alpha\ndescription: d\n---\nBody.\n")

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err = cat.Load("missing")
	if err == nil {
		t.Fatal("expected error for unknown skill")
	}
	if !strings.Contains(err.Error(), "alpha") {
		t.Errorf("expected error to enumerate available skills, got %v", err)
	}
}

func TestSkillWithoutFrontMatterFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "plain.md", "Just a body, no front matter.\n")

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	body, err := cat.Load("plain")
	if err != nil {
		t.Fatalf("load skill: %v", err)
	}
	if !strings.Contains(body, "Just a body") {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestLoadMissingDirectoryIsEmptyCatalog(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.Descriptions() != "No skills available." {
		t.Errorf("expected empty catalog message, got %q", cat.Descriptions())
	}
}
