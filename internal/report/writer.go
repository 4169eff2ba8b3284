package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/xuri/excelize/v2"

	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/table"
)

// Supported report formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Staged is a fully written report that is not yet visible at its path.
type Staged struct {
	path string
	pf   *renameio.PendingFile
}

// Path returns the final report path.
func (s *Staged) Path() string { return s.path }

// Commit atomically replaces the report file.
func (s *Staged) Commit() error {
	if err := s.pf.CloseAtomicallyReplace(); err != nil {
		return &apperrors.PersistenceError{Target: s.path, Op: "commit", Cause: err}
	}
	return nil
}

// Discard removes the staged file and leaves any previous report untouched.
func (s *Staged) Discard() error {
	return s.pf.Cleanup()
}

// Stage encodes t in the given format into a pending file next to path.
func Stage(t *table.Table, path, format string) (*Staged, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperrors.PersistenceError{Target: path, Op: "stage", Cause: err}
		}
	}
	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return nil, &apperrors.PersistenceError{Target: path, Op: "stage", Cause: err}
	}

	switch format {
	case FormatCSV, "":
		err = table.WriteCSV(pf, t)
	case FormatXLSX:
		err = WriteXLSX(pf, t)
	default:
		err = fmt.Errorf("unsupported report format %q", format)
	}
	if err != nil {
		_ = pf.Cleanup()
		return nil, &apperrors.PersistenceError{Target: path, Op: "stage", Cause: err}
	}
	return &Staged{path: path, pf: pf}, nil
}

// WriteXLSX writes t as a single-sheet workbook. Integer cells are stored
// as numbers.
func WriteXLSX(w io.Writer, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Name()
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		raw := t.Row(i)
		row := make([]any, len(raw))
		for j, v := range raw {
			if n, err := strconv.Atoi(v); err == nil {
				row[j] = n
			} else {
				row[j] = v
			}
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
