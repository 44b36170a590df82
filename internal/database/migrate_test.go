package database

import (
	"testing"
)

// 埋め込みマイグレーションファイルが存在することを検証
func TestMigrationsFS_ContainsInitMigration(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one embedded migration file")
	}

	var foundUp, foundDown bool
	for _, e := range entries {
		switch e.Name() {
		case "000001_init.up.sql":
			foundUp = true
		case "000001_init.down.sql":
			foundDown = true
		}
	}
	if !foundUp {
		t.Error("missing 000001_init.up.sql")
	}
	if !foundDown {
		t.Error("missing 000001_init.down.sql")
	}
}

// up/downマイグレーションが対になっていることを検証
func TestMigrationsFS_UpDownPairsMatch(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if len(name) > 7 && name[len(name)-7:] == ".up.sql" {
			ups[name[:len(name)-7]] = true
		}
		if len(name) > 9 && name[len(name)-9:] == ".down.sql" {
			downs[name[:len(name)-9]] = true
		}
	}

	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %s has no matching down file", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %s has no matching up file", base)
		}
	}
}
