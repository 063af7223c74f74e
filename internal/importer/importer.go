package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// Adapter converts statement rows of one vendor layout into transactions.
type Adapter interface {
	// ParseRow returns ok=false for rows without a usable date or amount.
	ParseRow(cols Columns, row []string) (model.Parsed, bool)
	Format() string
}

// Registry holds named adapters.
type Registry struct {
	adapters map[string]Adapter
}

// FileInfo describes a statement file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Panics on duplicate format.
func (r *Registry) Register(a Adapter) {
	key := strings.ToLower(a.Format())
	if _, ok := r.adapters[key]; ok {
		panic("duplicate adapter format: " + key)
	}
	r.adapters[key] = a
}

// Get returns the adapter for format, or nil.
func (r *Registry) Get(format string) Adapter {
	return r.adapters[strings.ToLower(strings.TrimSpace(format))]
}

// DefaultRegistry returns a registry with all built-in adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GenericAdapter{})
	r.Register(&ChaseAdapter{})
	return r
}

// ParseRows treats rows[0] as the header and runs every data row through
// the adapter. Rows that fail to parse are silently left out.
func ParseRows(rows [][]string, a Adapter) []model.Parsed {
	if len(rows) < 2 {
		return nil
	}
	cols := NewColumns(rows[0])

	var out []model.Parsed
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		if p, ok := a.ParseRow(cols, row); ok {
			out = append(out, p)
		}
	}
	return out
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// processedDir is the subdirectory for imported statements.
const processedDir = "processed"

var statementExts = map[string]bool{".csv": true, ".tsv": true, ".txt": true, ".xlsx": true}

// Scan returns statement files directly inside dir.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !statementExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
