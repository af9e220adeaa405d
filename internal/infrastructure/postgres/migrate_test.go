package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Ordered(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/0001_init.sql",
		"migrations/0002_sync_tasks.sql",
		"migrations/0003_device_tokens.sql",
	}, names)
}

func TestMigrations_PendingIndex(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/0002_sync_tasks.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "WHERE status = 'pending'")
}
