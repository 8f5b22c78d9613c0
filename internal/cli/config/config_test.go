package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	// No config file: defaults apply.
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	if cfg.KnowledgeBase.Database != "doclens" {
		t.Errorf("expected default database 'doclens', got %s", cfg.KnowledgeBase.Database)
	}
	if cfg.Sampling.MaxDocuments != 200 {
		t.Errorf("expected default max_documents 200, got %d", cfg.Sampling.MaxDocuments)
	}
	if cfg.Sampling.Enabled {
		t.Error("expected sampling to be disabled by default")
	}
	if !cfg.Sampling.PIIDetection {
		t.Error("expected PII detection to be enabled by default")
	}
	if cfg.Scan.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Scan.Workers)
	}
	if cfg.Scan.StatePath != ".doclens/state.db" {
		t.Errorf("expected default state path '.doclens/state.db', got %s", cfg.Scan.StatePath)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	configContent := `repositories:
  - ../payments-api
  - ../billing-api
knowledge_base:
  uri: mongodb://localhost:27017
  database: team_knowledge
sampling:
  enabled: true
  uri: mongodb://localhost:27018
  database: payments
  max_documents: 50
scan:
  workers: 8
`
	if err := os.WriteFile(filepath.Join(tmpDir, "doclens.yml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(cfg.Repositories) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(cfg.Repositories))
	}
	if cfg.KnowledgeBase.Database != "team_knowledge" {
		t.Errorf("expected database 'team_knowledge', got %s", cfg.KnowledgeBase.Database)
	}
	if !cfg.Sampling.Enabled {
		t.Error("expected sampling to be enabled")
	}
	if cfg.Sampling.MaxDocuments != 50 {
		t.Errorf("expected max_documents 50, got %d", cfg.Sampling.MaxDocuments)
	}
	if cfg.Scan.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Scan.Workers)
	}
	// Unset keys still fall back to defaults.
	if cfg.Scan.FileWorkers != 8 {
		t.Errorf("expected default file_workers 8, got %d", cfg.Scan.FileWorkers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero workers", "scan:\n  workers: 0\n"},
		{"too many workers", "scan:\n  workers: 500\n"},
		{"negative max documents", "sampling:\n  max_documents: -5\n"},
		{"sampling without uri", "sampling:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			oldWd, _ := os.Getwd()
			os.Chdir(tmpDir)
			defer os.Chdir(oldWd)

			if err := os.WriteFile(filepath.Join(tmpDir, "doclens.yml"), []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := Load(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestInProject(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	if InProject() {
		t.Error("expected InProject to be false in empty directory")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "doclens.yml"), []byte("scan:\n  workers: 4\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	if !InProject() {
		t.Error("expected InProject to be true with doclens.yml present")
	}
}
