package pak

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParts(t *testing.T, dir, stem string, parts [][]byte) string {
	t.Helper()
	primary := filepath.Join(dir, stem+".pak")
	for i, p := range parts {
		name := primary
		if i > 0 {
			name = filepath.Join(dir, stem+"_"+itoa(i)+".pak")
		}
		require.NoError(t, os.WriteFile(name, p, 0o644))
	}
	return primary
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestBuildOpenExtractRoundTrip(t *testing.T) {
	sources := []Source{
		{Path: "textures/a.dds", Data: []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
		{Path: "models/b.gr2", Data: []byte("binary mesh bytes, not really compressible 12345")},
		{Path: "loca/english.loca", Data: []byte{}},
	}
	parts, err := Build(sources, &WriteOptions{Method: MethodLZ4, ComputeCRC: true})
	require.NoError(t, err)
	require.Len(t, parts, 1)

	dir := t.TempDir()
	primary := writeParts(t, dir, "test", parts)

	a, err := Open(primary, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Entries(), 3)

	for _, src := range sources {
		got, err := a.Read(src.Path)
		require.NoError(t, err)
		assert.Equal(t, src.Data, got)
	}

	destDir := t.TempDir()
	require.NoError(t, a.ExtractAll(destDir, &ExtractOptions{VerifyCRC: true}))
	got, err := os.ReadFile(filepath.Join(destDir, "textures", "a.dds"))
	require.NoError(t, err)
	assert.Equal(t, sources[0].Data, got)
}

func TestBuildSplitsAcrossParts(t *testing.T) {
	sources := []Source{
		{Path: "a.bin", Data: make([]byte, 100)},
		{Path: "b.bin", Data: make([]byte, 100)},
		{Path: "c.bin", Data: make([]byte, 100)},
	}
	parts, err := Build(sources, &WriteOptions{Method: MethodNone, MaxPartSize: 150})
	require.NoError(t, err)
	assert.Greater(t, len(parts), 1)

	dir := t.TempDir()
	primary := writeParts(t, dir, "multi", parts)

	a, err := Open(primary, nil)
	require.NoError(t, err)
	defer a.Close()

	for _, src := range sources {
		got, err := a.Read(src.Path)
		require.NoError(t, err)
		assert.Equal(t, src.Data, got)
	}
}

func TestReadMissingFileReturnsErrNotFound(t *testing.T) {
	parts, err := Build([]Source{{Path: "x.bin", Data: []byte("hi")}}, &WriteOptions{Method: MethodNone})
	require.NoError(t, err)
	dir := t.TempDir()
	primary := writeParts(t, dir, "one", parts)

	a, err := Open(primary, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Read("missing.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCRCMismatchIsDetected(t *testing.T) {
	parts, err := Build([]Source{{Path: "x.bin", Data: []byte("hello world")}}, &WriteOptions{Method: MethodNone, ComputeCRC: true})
	require.NoError(t, err)
	dir := t.TempDir()
	primary := writeParts(t, dir, "crc", parts)

	a, err := Open(primary, nil)
	require.NoError(t, err)
	defer a.Close()

	e := a.Find("x.bin")
	require.NotNil(t, e)
	e.CRC ^= 0xFFFFFFFF

	_, err = a.Read("x.bin")
	assert.ErrorIs(t, err, ErrCRCMismatch)
}

func TestReadManyReturnsEntriesInOrder(t *testing.T) {
	sources := []Source{
		{Path: "a.txt", Data: []byte("hello")},
		{Path: "dir/b.bin", Data: make([]byte, 1024)},
		{Path: "c.txt", Data: []byte("world")},
	}
	parts, err := Build(sources, &WriteOptions{Method: MethodLZ4})
	require.NoError(t, err)

	primary := writeParts(t, t.TempDir(), "many", parts)
	a, err := Open(primary, nil)
	require.NoError(t, err)
	defer a.Close()

	got, err := a.ReadMany([]string{"c.txt", "a.txt"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c.txt", got[0].Path)
	assert.Equal(t, []byte("world"), got[0].Data)
	assert.Equal(t, "a.txt", got[1].Path)
	assert.Equal(t, []byte("hello"), got[1].Data)

	_, err = a.ReadMany([]string{"a.txt", "missing.txt"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateWritesArchiveToDisk(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "dir", "b.bin"), make([]byte, 1024), 0o644))

	dest := filepath.Join(t.TempDir(), "out.pak")
	written, err := Create(srcDir, dest, &WriteOptions{Method: MethodLZ4, Workers: 1})
	require.NoError(t, err)
	require.Equal(t, []string{dest}, written)

	a, err := Open(dest, nil)
	require.NoError(t, err)
	defer a.Close()

	paths := []string{}
	for _, e := range a.Entries() {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"a.txt", "dir/b.bin"}, paths)

	got, err := a.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestBuildAndExtractHonorCancellation(t *testing.T) {
	stop := make(chan struct{})
	close(stop)

	sources := []Source{{Path: "a.txt", Data: []byte("hello")}}
	_, err := Build(sources, &WriteOptions{Cancel: stop})
	assert.ErrorIs(t, err, ErrCancelled)

	parts, err := Build(sources, &WriteOptions{Method: MethodNone})
	require.NoError(t, err)
	primary := writeParts(t, t.TempDir(), "cancel", parts)
	a, err := Open(primary, nil)
	require.NoError(t, err)
	defer a.Close()

	err = a.ExtractAll(t.TempDir(), &ExtractOptions{Cancel: stop})
	assert.ErrorIs(t, err, ErrCancelled)
}
