package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lukasortiz/taskpay-backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestInitMigrationContainsCoreConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init_payment_core.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no init migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CONSTRAINT ux_payments_fingerprint UNIQUE (fingerprint)",
		"CONSTRAINT ux_escrows_order UNIQUE (order_id)",
		"CONSTRAINT ux_bookings_order UNIQUE (order_id)",
		"CONSTRAINT ux_invoices_order UNIQUE (order_id)",
		"CREATE INDEX ix_webhook_events_due ON webhook_events (status, next_retry_at)",
		"DROP TABLE IF EXISTS webhook_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
