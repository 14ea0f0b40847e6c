package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/field"
)

func writeMappingFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing mapping file: %v", err)
	}
	return path
}

func TestLoadMappings(t *testing.T) {
	path := writeMappingFile(t, `
papers:
  标题: title
  作者: author_list
keywords:
  关键词: keyword_list
`)

	mappings, err := LoadMappings(path)
	if err != nil {
		t.Fatalf("LoadMappings() error = %v", err)
	}

	papers, ok := mappings[category.Papers]
	if !ok {
		t.Fatal("papers mapping missing")
	}
	if role, ok := papers.RoleFor("标题"); !ok || role != field.RoleTitle {
		t.Errorf("RoleFor(标题) = %v, %v, want title", role, ok)
	}
	// Built-in headers survive the overlay.
	if role, ok := papers.RoleFor("Title"); !ok || role != field.RoleTitle {
		t.Errorf("RoleFor(Title) = %v, %v, want title", role, ok)
	}
	if _, ok := mappings[category.Authors]; ok {
		t.Error("authors mapping present without overrides")
	}

	kw := mappings[category.Keywords]
	if role, ok := kw.RoleFor("关键词"); !ok || role != field.RoleKeywordList {
		t.Errorf("RoleFor(关键词) = %v, %v, want keyword_list", role, ok)
	}
}

func TestLoadMappings_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown category", "citations:\n  a: title\n"},
		{"unknown role", "papers:\n  a: not_a_role\n"},
		{"not yaml", ": : :\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadMappings(writeMappingFile(t, tt.content)); err == nil {
				t.Error("LoadMappings() = nil error, want rejection")
			}
		})
	}
}

func TestLoadMappings_MissingFile(t *testing.T) {
	if _, err := LoadMappings(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("LoadMappings() = nil error for missing file")
	}
}
