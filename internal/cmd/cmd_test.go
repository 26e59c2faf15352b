package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/localnerve/portsmith/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	root := NewRootCmd("test")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("LOG_LEVEL", "critical")
	t.Setenv("AMQP_URL", "")
	path := filepath.Join(dir, "ports.db")
	t.Setenv("DB_DATABASE", path)
	return path
}

func TestCreateTwice(t *testing.T) {
	path := setupEnv(t)

	stdout, _, err := runCmd(t, "create", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "DB created.")

	_, stderr, err := runCmd(t, "create", "--path", path)
	assert.ErrorIs(t, err, database.ErrAlreadyProvisioned)
	assert.Contains(t, stderr, "DB already exists.")
}

func TestHealthcheck(t *testing.T) {
	setupEnv(t)

	_, _, err := runCmd(t, "healthcheck")
	assert.Error(t, err)

	_, _, err = runCmd(t, "create")
	require.NoError(t, err)

	stdout, _, err := runCmd(t, "healthcheck")
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "healthy", result["status"])
	assert.Equal(t, "ok", result["database"])
	assert.Equal(t, "disabled", result["broker"])
}

func TestInvalidLogLevel(t *testing.T) {
	setupEnv(t)

	_, _, err := runCmd(t, "start", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestMissingEnvFile(t *testing.T) {
	setupEnv(t)

	_, _, err := runCmd(t, "--env-file", "nope.env", "healthcheck")
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	stdout, _, err := runCmd(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== table: reservations ===")
	assert.Contains(t, stdout, "CREATE TABLE")
}
