package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sampleMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/000001_widgets.up.sql":       {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)")},
		"sql/000001_widgets.down.sql":     {Data: []byte("DROP TABLE widgets")},
		"sql/000002_widget_name.up.sql":   {Data: []byte("CREATE INDEX idx_widgets_name ON widgets (name)")},
		"sql/000002_widget_name.down.sql": {Data: []byte("DROP INDEX idx_widgets_name")},
		"sql/README.md":                   {Data: []byte("ignored")},
	}
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	set, err := LoadMigrations(sampleMigrations(), "sql")
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "000001_widgets", set[0].String())
	assert.Equal(t, 2, set[1].Version)
	assert.Equal(t, "widget_name", set[1].Name)

	missingDown := fstest.MapFS{"sql/000003_orphan.up.sql": {Data: []byte("SELECT 1")}}
	_, err = LoadMigrations(missingDown, "sql")
	assert.ErrorContains(t, err, "000003_orphan.down.sql")

	dup := sampleMigrations()
	dup["sql/1_again.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1")}
	dup["sql/1_again.down.sql"] = &fstest.MapFile{Data: []byte("SELECT 1")}
	_, err = LoadMigrations(dup, "sql")
	assert.ErrorContains(t, err, "version 1 used by")
}

func TestMigrator_UpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	set, err := LoadMigrations(sampleMigrations(), "sql")
	require.NoError(t, err)
	m := NewMigratorWith(db, set)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("widgets"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)

	require.NoError(t, m.Down(ctx, 2))
	assert.ErrorContains(t, m.Down(ctx, 2), "not applied")
	assert.ErrorContains(t, m.Down(ctx, 9), "unknown migration")

	pending, err = m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestMigrator_FailedScriptLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := NewMigratorWith(db, []Migration{
		{Version: 1, Name: "broken", UpScript: "CREATE TABLE (", DownScript: "SELECT 1"},
	})

	n, err := m.Up(ctx)
	require.Error(t, err)
	assert.Zero(t, n)

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrator_RejectsVersionsFromNewerBuild(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	set, err := LoadMigrations(sampleMigrations(), "sql")
	require.NoError(t, err)

	_, err = NewMigratorWith(db, set).Up(ctx)
	require.NoError(t, err)

	_, err = NewMigratorWith(db, set[:1]).Pending(ctx)
	assert.ErrorContains(t, err, "000002")
}
