package store

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"testing"
)

func testRawDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsFreshDB(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}

	for _, table := range []string{"objects", "chunks", "chunk_bodies", "temp_chunks", "temp_bodies", "sweep_cursors"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("check %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("%s table not created", table)
		}
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runMigrations(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}
}

func TestDetectPreMigrationDB(t *testing.T) {
	db := testRawDB(t)

	// Empty DB — not pre-migration.
	pre, err := detectPreMigrationDB(db)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if pre {
		t.Fatal("empty DB should not be pre-migration")
	}

	// Create objects table manually (simulating a pre-framework DB).
	if _, err := db.Exec("CREATE TABLE objects (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("create objects: %v", err)
	}

	pre, err = detectPreMigrationDB(db)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !pre {
		t.Fatal("DB with objects but no schema_migrations should be pre-migration")
	}

	// After running migrations, should stamp version 1 and detect as migrated.
	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pre, err = detectPreMigrationDB(db)
	if err != nil {
		t.Fatalf("detect after migration: %v", err)
	}
	if pre {
		t.Fatal("after migration should not be pre-migration")
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}
}

func TestMigrationPlan(t *testing.T) {
	db := testRawDB(t)

	plan, err := MigrationPlan(db)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.CurrentVersion != 0 {
		t.Fatalf("expected current 0, got %d", plan.CurrentVersion)
	}
	if plan.AvailableVersion != 3 {
		t.Fatalf("expected available 3, got %d", plan.AvailableVersion)
	}
	if len(plan.Pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(plan.Pending))
	}
}

func TestMigration002SweepCursors(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	_, err := db.Exec(`INSERT INTO sweep_cursors (name, last_id, updated_at) VALUES ('migrate', 'abc', datetime('now'))`)
	if err != nil {
		t.Fatalf("insert cursor: %v", err)
	}

	var lastID string
	if err := db.QueryRow("SELECT last_id FROM sweep_cursors WHERE name = 'migrate'").Scan(&lastID); err != nil {
		t.Fatalf("query cursor: %v", err)
	}
	if lastID != "abc" {
		t.Fatalf("expected cursor 'abc', got %q", lastID)
	}
}

func TestMigration003BodyDigest(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	for _, table := range []string{"chunk_bodies", "temp_bodies"} {
		_, err := db.Exec("INSERT INTO "+table+" (owner_id, size, chunk_size, written_at) VALUES ('a', 1, 1, 0)")
		if err != nil {
			t.Fatalf("insert %s: %v", table, err)
		}
		var md5 string
		if err := db.QueryRow("SELECT md5 FROM " + table + " WHERE owner_id = 'a'").Scan(&md5); err != nil {
			t.Fatalf("query %s: %v", table, err)
		}
		if md5 != "" {
			t.Fatalf("expected empty default md5 in %s, got %q", table, md5)
		}
	}
}
