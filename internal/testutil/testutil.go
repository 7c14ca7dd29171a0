// Package testutil provides database fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/migrations"
	"github.com/fso-systems/travelreq/pkg/database"
)

// NewDB opens a throwaway sqlite database with the real schema applied.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Run(migrations.FS))
	return db
}

// SeedFundingSource inserts a funding source and returns its id.
func SeedFundingSource(t *testing.T, db *database.DB, name string, requireDescription bool) int64 {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO funding_sources (name, require_description) VALUES (?, ?)",
		name, requireDescription,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// SeedExpenditureOption inserts an expenditure option and returns its id.
func SeedExpenditureOption(t *testing.T, db *database.DB, name string) int64 {
	t.Helper()
	res, err := db.Exec("INSERT INTO expenditure_options (name) VALUES (?)", name)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}
