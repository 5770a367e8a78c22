package loca

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteReadSearchReplace exercises the full read/write/search/replace
// cycle on a small resource.
func TestWriteReadSearchReplace(t *testing.T) {
	res := New(1)
	res.Add("h1", "Hello")
	res.Add("h2", "World")

	data, err := Write(res)
	require.NoError(t, err)

	got, err := Read(data)
	require.NoError(t, err)
	require.Len(t, got.Entries(), 2)
	assert.Equal(t, "Hello", got.Get("h1").Text)
	assert.Equal(t, "World", got.Get("h2").Text)

	found := got.SearchByText("orl", 10)
	require.Len(t, found, 1)
	assert.Equal(t, "h2", found[0].Key)

	report := got.ReplaceAll("World", "Earth", true)
	assert.Equal(t, 1, report.Matches)
	assert.Equal(t, 1, report.EntriesModified)
	assert.Equal(t, "Earth", got.Get("h2").Text)
}

func TestAddUpdatesExistingKey(t *testing.T) {
	res := New(1)
	isNew := res.Add("k", "v1")
	assert.True(t, isNew)
	isNew = res.Add("k", "v2")
	assert.False(t, isNew)
	assert.Equal(t, "v2", res.Get("k").Text)
	assert.Len(t, res.Entries(), 1)
}

func TestExportImportCSV(t *testing.T) {
	res := New(1)
	res.Add("a", "one")
	res.Add("b", "two, with comma")

	var buf bytes.Buffer
	n, err := res.Export(&buf, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := New(1)
	report, err := dst.Import(&buf, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, "one", dst.Get("a").Text)
	assert.Equal(t, "two, with comma", dst.Get("b").Text)
}

func TestDeleteEntry(t *testing.T) {
	res := New(1)
	res.Add("a", "one")
	e := res.Delete("a")
	require.NotNil(t, e)
	assert.Nil(t, res.Get("a"))
	assert.Empty(t, res.Entries())
}
