package postgres

import (
	"strings"
	"testing"
)

func TestStatements_SplitsEmbeddedSchema(t *testing.T) {
	stmts := statements(schema)
	if len(stmts) < 10 {
		t.Fatalf("expected the whole schema, got %d statements", len(stmts))
	}
	for _, s := range stmts {
		if strings.HasPrefix(s, "--") || strings.HasSuffix(s, ";") {
			t.Fatalf("statement not cleaned: %q", s)
		}
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS clinics") {
		t.Fatalf("unexpected first statement: %q", stmts[0])
	}
}
