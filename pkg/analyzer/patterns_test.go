package analyzer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPatternTablesDetect(t *testing.T) {
	tables := defaultPatternTables()

	cases := []struct {
		text  string
		table string
		label string
	}{
		{"build a full-stack app", "scope", "full-stack"},
		{"start from scratch", "scope", "from-scratch"},
		{"integrate Stripe payments", "risk", "payment-processing"},
		{"needs OAuth support", "risk", "security-concerns"},
	}

	for _, tc := range cases {
		found := false
		switch tc.table {
		case "scope":
			for _, p := range tables.Scope {
				if p.Label == tc.label && p.Pattern.MatchString(tc.text) {
					found = true
				}
			}
		case "risk":
			for _, p := range tables.Risk {
				if p.Label == tc.label && p.Pattern.MatchString(tc.text) {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("%s pattern %q did not match %q", tc.table, tc.label, tc.text)
		}
	}
}

func TestDefaultDomainPatterns(t *testing.T) {
	tables := defaultPatternTables()

	text := "React dashboard backed by a Postgres database behind a REST API"
	var domains []string
	for _, p := range tables.Domain {
		if p.Pattern.MatchString(text) {
			domains = append(domains, p.Label)
		}
	}

	if len(domains) != 3 {
		t.Errorf("expected frontend, backend, database; got %v", domains)
	}
}

func TestLoadPatternTablesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := `scope:
  - label: custom-scope
    pattern: '(?i)\bbespoke\b'
    points: 9
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pattern file: %v", err)
	}

	tables, err := LoadPatternTables(path)
	if err != nil {
		t.Fatalf("LoadPatternTables failed: %v", err)
	}

	if len(tables.Scope) != 1 || tables.Scope[0].Label != "custom-scope" || tables.Scope[0].Points != 9 {
		t.Errorf("scope section was not overridden: %+v", tables.Scope)
	}
	// Sections absent from the file keep the built-in defaults.
	if len(tables.Risk) == 0 || len(tables.Domain) == 0 {
		t.Errorf("risk/domain defaults were lost: %d risk, %d domain", len(tables.Risk), len(tables.Domain))
	}
}

func TestLoadPatternTablesInvalidRegex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := `risk:
  - label: broken
    pattern: '('
    points: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pattern file: %v", err)
	}

	if _, err := LoadPatternTables(path); err == nil {
		t.Error("expected error for invalid regex in pattern file")
	}
}

func TestLoadPatternTablesMissingFile(t *testing.T) {
	if _, err := LoadPatternTables(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing pattern file")
	}
}
