package migrate

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	content := readEmbedded(t, "_create_payment_ledger.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_intents_active_order",
		"WHERE superseded_at IS NULL",
		"CONSTRAINT ux_payment_events_sequence UNIQUE (payment_intent_id, sequence)",
		"BEFORE UPDATE OR DELETE ON payment_events",
		"DROP TABLE IF EXISTS payment_intents",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationGuardsTotals(t *testing.T) {
	content := readEmbedded(t, "_create_orders.sql")

	checks := []string{
		"CHECK (total_amount = sub_total + shipping_cost + tax_amount - discount_amount)",
		"CHECK (line_total = unit_price * quantity)",
		"CONSTRAINT ux_orders_order_number UNIQUE (order_number)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateFSRejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_bad.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	if err := ValidateFS(fsys, "m"); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}

	fsys = fstest.MapFS{
		"m/20260101000000_ok.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n")},
	}
	if err := ValidateFS(fsys, "m"); err == nil {
		t.Fatal("expected missing down section to fail validation")
	}
}

func readEmbedded(t *testing.T, suffix string) string {
	t.Helper()
	entries, err := fs.ReadDir(Migrations, embeddedDir)
	if err != nil {
		t.Fatalf("read embedded dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			data, err := fs.ReadFile(Migrations, embeddedDir+"/"+e.Name())
			if err != nil {
				t.Fatalf("read migration: %v", err)
			}
			return string(data)
		}
	}
	t.Fatalf("no migration matching %s", suffix)
	return ""
}
