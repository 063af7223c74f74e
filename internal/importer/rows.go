package importer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadRows splits a statement file into rows of trimmed fields. Text files
// go through SplitLines and Tokenize; .xlsx workbooks are read from their
// first sheet.
func ReadRows(name string, data []byte) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return readWorkbook(data)
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	lines := SplitLines(text)
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = Tokenize(l)
	}
	return rows, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	var rows [][]string
	for _, r := range raw {
		if blankRow(r) {
			continue
		}
		row := make([]string, len(r))
		for i, c := range r {
			row[i] = strings.TrimSpace(c)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
