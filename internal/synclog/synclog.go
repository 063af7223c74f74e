package synclog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/tally/internal/syncer"
)

// Entry is one row of the sync log: the outcome of one item sync.
type Entry struct {
	Timestamp  time.Time
	OwnerID    string
	ItemID     string
	Added      int
	Pending    int
	Orphaned   int
	Duplicates int
	Pages      int
	Cursor     string
	Error      string
}

// Header is the CSV header for sync-log.csv.
const Header = "timestamp,owner_id,item_id,added,pending,orphaned,duplicates,pages,cursor,error"

// FileName is the log file inside the log directory.
const FileName = "sync-log.csv"

const (
	numFields     = 10
	colTimestamp  = 0
	colOwner      = 1
	colItem       = 2
	colAdded      = 3
	colPending    = 4
	colOrphaned   = 5
	colDuplicates = 6
	colPages      = 7
	colCursor     = 8
	colError      = 9
)

// FromReport turns a sync report into log entries stamped with at.
func FromReport(at time.Time, r syncer.Report) []Entry {
	entries := make([]Entry, 0, len(r.Items))
	for _, it := range r.Items {
		e := Entry{
			Timestamp:  at,
			OwnerID:    it.OwnerID,
			ItemID:     it.ItemID,
			Added:      it.Added,
			Pending:    it.Pending,
			Orphaned:   it.Orphaned,
			Duplicates: it.Duplicates,
			Pages:      it.Pages,
			Cursor:     it.Cursor,
		}
		if it.Err != nil {
			e.Error = it.Err.Error()
		}
		entries = append(entries, e)
	}
	return entries
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colOwner] = e.OwnerID
	row[colItem] = e.ItemID
	row[colAdded] = strconv.Itoa(e.Added)
	row[colPending] = strconv.Itoa(e.Pending)
	row[colOrphaned] = strconv.Itoa(e.Orphaned)
	row[colDuplicates] = strconv.Itoa(e.Duplicates)
	row[colPages] = strconv.Itoa(e.Pages)
	row[colCursor] = e.Cursor
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	e := Entry{
		Timestamp: ts,
		OwnerID:   record[colOwner],
		ItemID:    record[colItem],
		Cursor:    record[colCursor],
		Error:     record[colError],
	}
	counts := []struct {
		col int
		dst *int
	}{
		{colAdded, &e.Added},
		{colPending, &e.Pending},
		{colOrphaned, &e.Orphaned},
		{colDuplicates, &e.Duplicates},
		{colPages, &e.Pages},
	}
	for _, c := range counts {
		n, err := strconv.Atoi(record[c.col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing count %q: %w", record[c.col], err)
		}
		*c.dst = n
	}
	return e, nil
}

// Append writes entries to <dir>/sync-log.csv, creating the file and header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/sync-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sync log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
