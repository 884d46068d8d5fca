package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"groupwatch/internal/util"
)

type xlsxSource struct {
	baseSource
	sheet string
}

func (s *xlsxSource) Open(ctx context.Context) (Rows, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, unavailable(s.name, err)
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, unavailable(s.name, err)
	}

	sheet, ok := findSheet(f.GetSheetList(), s.sheet)
	if !ok {
		_ = f.Close()
		return nil, unavailable(s.name, eris.Errorf("sheet %q not found in %s", s.sheet, s.path))
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, unavailable(s.name, err)
	}

	ordinal := 0
	next := func() (int, []string, error) {
		if !rows.Next() {
			if err := rows.Error(); err != nil {
				return 0, nil, err
			}
			return 0, nil, io.EOF
		}
		ordinal++
		cells, err := rows.Columns()
		if err != nil {
			return 0, nil, err
		}
		return ordinal, cells, nil
	}
	closeFn := func() error {
		rowsErr := rows.Close()
		if err := f.Close(); err != nil {
			return err
		}
		return rowsErr
	}
	return newCursor(ctx, s.baseSource, next, closeFn), nil
}

// findSheet prefers an exact sheet name and falls back to a case and
// spacing insensitive match, since tab names drift between exports.
func findSheet(sheets []string, want string) (string, bool) {
	for _, name := range sheets {
		if name == want {
			return name, true
		}
	}
	key := util.FoldKey(want)
	for _, name := range sheets {
		if util.FoldKey(name) == key {
			return name, true
		}
	}
	if strings.TrimSpace(want) == "" && len(sheets) > 0 {
		return sheets[0], true
	}
	return "", false
}
