package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-request-api/internal/bootstrap"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/clock"
	"github.com/noah-isme/campus-request-api/pkg/config"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

var seededAt = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func memoryOptions(t *testing.T) (*rootOptions, *bootstrap.App) {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Session: config.SessionConfig{
			Store:         config.DriverMemory,
			TTL:           time.Minute,
			CookieName:    "CMS_Session",
			CookieHashKey: "queuectl-test-hash-key-0123456789",
		},
		Queue: config.QueueConfig{UnitServiceTime: 15 * time.Minute},
	}
	app, err := bootstrap.New(context.Background(), cfg, nil, bootstrap.WithClock(clock.NewManual(seededAt)), bootstrap.WithoutNotifications())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	opts := &rootOptions{format: formatText}
	opts.open = func(context.Context) (*bootstrap.App, error) { return app, nil }
	return opts, app
}

func execute(t *testing.T, opts *rootOptions, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := opts.command()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	opts, app := memoryOptions(t)
	ctx := context.Background()
	_, err := app.Requests.Submit(ctx, "alice", "transcript", "official copy")
	require.NoError(t, err)
	_, err = app.Requests.Submit(ctx, "bob", "transcript", "two copies")
	require.NoError(t, err)

	out, err := execute(t, opts, "stats", "--format", "json")
	require.NoError(t, err)

	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Status[models.RequestStatusPending])
	assert.Equal(t, models.CategoryStats{Total: 2, Pending: 2}, report.ByCategory["transcript"])

	out, err = execute(t, opts, "stats", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "category.transcript")
	assert.Contains(t, out, "2 pending / 2 total")
}

func TestPickCommand(t *testing.T) {
	opts, app := memoryOptions(t)

	_, err := execute(t, opts, "pick", "--format", "json")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	submitted, err := app.Requests.Submit(context.Background(), "alice", "housing", "room swap")
	require.NoError(t, err)

	out, err := execute(t, opts, "pick", "--format", "json")
	require.NoError(t, err)
	var picked models.Request
	require.NoError(t, json.Unmarshal([]byte(out), &picked))
	assert.Equal(t, submitted.ID, picked.ID)
	assert.Equal(t, models.RequestStatusPending, picked.Status)
}

func TestExportCommandWritesAndPrunes(t *testing.T) {
	opts, app := memoryOptions(t)
	submitted, err := app.Requests.Submit(context.Background(), "alice", "transcript", "official copy")
	require.NoError(t, err)

	dir := t.TempDir()
	stale := filepath.Join(dir, "old.csv")
	require.NoError(t, os.WriteFile(stale, []byte("id\n"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	out, err := execute(t, opts, "export", "--format", "json", "--dir", dir, "--name", "weekly.csv", "--prune", "24h")
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, filepath.Join(dir, "weekly.csv"), result["file"])
	assert.Equal(t, "1", result["pruned"])
	assert.Equal(t, "1", result["rows"])

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	body, err := os.ReadFile(filepath.Join(dir, "weekly.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(body), submitted.ID)
}

func TestExportCommandDefaultName(t *testing.T) {
	opts, _ := memoryOptions(t)
	dir := t.TempDir()

	out, err := execute(t, opts, "export", "--format", "json", "--dir", dir, "--category", "transcript")
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, filepath.Join(dir, "requests-transcript-20250901-090000.csv"), result["file"])
	assert.Equal(t, "0", result["rows"])
	_, hasPruned := result["pruned"]
	assert.False(t, hasPruned)
	assert.FileExists(t, result["file"])
}

func TestExportCommandRejectsEscapingName(t *testing.T) {
	opts, _ := memoryOptions(t)

	_, err := execute(t, opts, "export", "--dir", t.TempDir(), "--name", "../evil.csv")
	assert.Error(t, err)
}

func TestMigrateCommandAgainstSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("DB_SQLITE_PATH", filepath.Join(t.TempDir(), "queue.db"))
	opts := &rootOptions{format: formatText}
	opts.open = opts.openApp

	out, err := execute(t, opts, "migrate", "up", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"driver":"sqlite3","migration":"up","status":"ok"}`, out)

	out, err = execute(t, opts, "stats", "--format", "json")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 0, report.Status[models.RequestStatusPending])

	out, err = execute(t, opts, "migrate", "down", "--steps", "2", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"driver":"sqlite3","migration":"down","status":"ok"}`, out)
}

func TestOpenAppRefusesMemoryStore(t *testing.T) {
	t.Setenv("DB_DRIVER", config.DriverMemory)
	opts := &rootOptions{format: formatText}
	opts.open = opts.openApp

	_, err := execute(t, opts, "stats")
	assert.ErrorContains(t, err, "persistent store")
}
