package migrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreCanonicallyPaired(t *testing.T) {
	entries, err := files.ReadDir("sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case len(name) > 7 && name[len(name)-7:] == ".up.sql":
			ups[name[:len(name)-7]] = true
		case len(name) > 9 && name[len(name)-9:] == ".down.sql":
			downs[name[:len(name)-9]] = true
		}
	}

	require.NotEmpty(t, ups)
	for version := range ups {
		require.Truef(t, downs[version], "missing down migration for %s", version)
	}
	for version := range downs {
		require.Truef(t, ups[version], "missing up migration for %s", version)
	}
}
