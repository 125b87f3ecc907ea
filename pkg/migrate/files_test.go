package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAtSlugsNameAndRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 7, 0, 0, time.UTC)

	path, err := createAt(dir, "Add SKU  Discounts!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260301090700_add_sku_discounts.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")

	_, err = createAt(dir, "add sku discounts", now)
	assert.Error(t, err)

	_, err = createAt(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	write := func(t *testing.T, dir, name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	full := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"

	t.Run("bad name", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "create_orders.sql", full)
		assert.Error(t, ValidateDir(dir))
	})
	t.Run("duplicate version", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "20260301090000_a.sql", full)
		write(t, dir, "20260301090000_b.sql", full)
		assert.Error(t, ValidateDir(dir))
	})
	t.Run("missing down", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "20260301090000_a.sql", "-- +goose Up\nSELECT 1;\n")
		assert.Error(t, ValidateDir(dir))
	})
	t.Run("not a timestamp", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "99999999999999_a.sql", full)
		assert.Error(t, ValidateDir(dir))
	})
	t.Run("ok", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "20260301090000_a.sql", full)
		write(t, dir, "README.md", "ignored")
		assert.NoError(t, ValidateDir(dir))
	})
}
