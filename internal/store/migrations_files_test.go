package store

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var migrationName = regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)

func migrationsDir() string {
	return filepath.Join("..", "..", "db", "migrations")
}

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir())
	require.NoError(t, err)

	byVersion := map[string]map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		require.NotNilf(t, match, "unexpected file in migrations dir: %s", entry.Name())

		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		require.Falsef(t, byVersion[version][direction], "duplicate %s migration for version %s", direction, version)
		byVersion[version][direction] = true
	}

	require.NotEmpty(t, byVersion, "no migrations discovered")
	for version, dirs := range byVersion {
		require.Truef(t, dirs["up"] && dirs["down"], "version %s must include both up and down files", version)
	}
}

func TestListMigrationsReturnsUpFilesInOrder(t *testing.T) {
	files, err := listMigrations(migrationsDir())
	require.NoError(t, err)
	require.NotEmpty(t, files)
	require.True(t, sort.StringsAreSorted(files))

	for _, file := range files {
		require.True(t, strings.HasSuffix(file, migrationSuffix))
		contents, err := os.ReadFile(file)
		require.NoError(t, err)
		require.NotEmpty(t, strings.TrimSpace(string(contents)), "empty migration %s", file)
	}
}
