package database

import (
	"testing"
	"testing/fstest"

	"clawqa/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesSchemaOnce(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, migrations.FS))
	// second run is a no-op
	require.NoError(t, Migrate(db, migrations.FS))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)

	for _, table := range []string{"webhooks", "webhook_deliveries", "escalation_rules", "bug_reports", "test_cycles", "projects", "api_keys", "users"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestMigrate_FailedFileIsNotRecorded(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_ok.sql":     {Data: []byte("CREATE TABLE a (id TEXT);")},
		"0002_broken.sql": {Data: []byte("CREATE TABLE nope (")},
	}

	err = Migrate(db, fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_broken.sql")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDBPath(t *testing.T) {
	tests := map[string]string{
		"file:data/clawqa.db?_journal_mode=WAL": "data/clawqa.db",
		"file:clawqa.db":                        "clawqa.db",
		"/var/lib/clawqa/clawqa.db":             "/var/lib/clawqa/clawqa.db",
	}
	for dsn, want := range tests {
		assert.Equal(t, want, dbPath(dsn), dsn)
	}
}
