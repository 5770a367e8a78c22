package pak

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectSourcesSkipsHousekeepingFilesAndSymlinks(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "textures", "a.dds"), []byte("dds bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Thumbs.db"), []byte("junk"), 0o644))

	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink(filepath.Join(root, "textures", "a.dds"), filepath.Join(root, "link.dds")))
	}

	sources, err := CollectSources(root)
	require.NoError(t, err)

	var paths []string
	for _, s := range sources {
		paths = append(paths, s.Path)
	}
	assert.ElementsMatch(t, []string{"textures/a.dds"}, paths)
}
