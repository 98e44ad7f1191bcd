package main

import (
	"os"
	"testing"

	"github.com/brojonat/txconfirm/service/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := runApp(t, nil, "db", "migrate")
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestMigrate(t *testing.T) {
	db.SkipIfNoTestDB(t)

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	for range 2 {
		out, err := runApp(t, nil, "--database-url", url, "db", "migrate")
		require.NoError(t, err)
		assert.Contains(t, out, "Schema is up to date")
	}
}
