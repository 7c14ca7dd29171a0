package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/testutil"
)

func TestUpsertAndGet(t *testing.T) {
	db := testutil.NewDB(t)
	dir := directory.New(db.DB, zap.NewNop())

	upsert := func(emp directory.Employee) {
		t.Helper()
		tx, err := db.Begin()
		require.NoError(t, err)
		require.NoError(t, dir.UpsertInTransaction(tx, emp))
		require.NoError(t, tx.Commit())
	}

	upsert(directory.Employee{
		Kerberos: "jdoe", FirstName: "Jordan", LastName: "Doe", Department: "Chemistry",
	})

	got, err := dir.Get("jdoe")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jordan", got.FirstName)
	assert.Equal(t, "Chemistry", got.Department)

	// A refresh without a department keeps the one on record.
	upsert(directory.Employee{Kerberos: "jdoe", FirstName: "Jordyn", LastName: "Doe"})

	got, err = dir.Get("jdoe")
	require.NoError(t, err)
	assert.Equal(t, "Jordyn", got.FirstName)
	assert.Equal(t, "Chemistry", got.Department)

	// A kerberos-only refresh keeps the names on record too.
	upsert(directory.Employee{Kerberos: "jdoe"})

	got, err = dir.Get("jdoe")
	require.NoError(t, err)
	assert.Equal(t, "Jordyn", got.FirstName)
	assert.Equal(t, "Doe", got.LastName)
	assert.Equal(t, "Chemistry", got.Department)
}

func TestGetUnknownEmployee(t *testing.T) {
	db := testutil.NewDB(t)
	dir := directory.New(db.DB, zap.NewNop())

	got, err := dir.Get("nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertRequiresKerberos(t *testing.T) {
	db := testutil.NewDB(t)
	dir := directory.New(db.DB, zap.NewNop())

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	assert.Error(t, dir.UpsertInTransaction(tx, directory.Employee{FirstName: "Nameless"}))
}
