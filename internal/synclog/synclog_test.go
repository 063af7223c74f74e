package synclog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/syncer"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:  testTime,
		OwnerID:    "u1",
		ItemID:     "item-1",
		Added:      12,
		Pending:    2,
		Orphaned:   1,
		Duplicates: 3,
		Pages:      2,
		Cursor:     "c2",
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "item-1", entries[0].ItemID)
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := testEntry()
	e2.ItemID = "item-2"
	e2.Error = "feed api: status 500"
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "item-1", entries[0].ItemID)
	assert.Equal(t, "feed api: status 500", entries[1].Error)
}

func TestRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := testEntry()
	require.NoError(t, Append(dir, []Entry{original}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	got.Timestamp = original.Timestamp
	assert.Equal(t, original, got)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(Header+"\n"), 0o644))

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	_, err := UnmarshalEntry([]string{"one", "two"})
	assert.ErrorContains(t, err, "expected 10 fields")

	row := MarshalEntry(testEntry())
	row[colPages] = "many"
	_, err = UnmarshalEntry(row)
	assert.ErrorContains(t, err, "many")
}

func TestFromReport(t *testing.T) {
	report := syncer.Report{
		Added: 5,
		Items: []syncer.ItemReport{
			{OwnerID: "u1", ItemID: "item-1", Added: 5, Pages: 1, Cursor: "c1"},
			{OwnerID: "u1", ItemID: "item-2", Cursor: "d0", Err: errors.New("timeout")},
		},
	}

	entries := FromReport(testTime, report)
	require.Len(t, entries, 2)
	assert.Equal(t, 5, entries[0].Added)
	assert.Empty(t, entries[0].Error)
	assert.Equal(t, "timeout", entries[1].Error)
	assert.Equal(t, "2025-01-15T10:30:00Z", MarshalEntry(entries[1])[colTimestamp])
}
