package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
)

type csvSource struct {
	baseSource
}

func (s *csvSource) Open(ctx context.Context) (Rows, error) {
	fh, err := os.Open(s.path)
	if err != nil {
		return nil, unavailable(s.name, err)
	}

	br := bufio.NewReader(fh)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if strings.EqualFold(filepath.Ext(s.path), ".tsv") {
		reader.Comma = '\t'
	}

	// encoding/csv drops blank lines; they come back here as empty records
	// so the audit counts them the same way as gap rows in a sheet.
	var (
		lastLine int
		held     []string
		heldLine int
		heldEnd  int
	)
	next := func() (int, []string, error) {
		if held != nil {
			if lastLine+1 < heldLine {
				lastLine++
				return lastLine, nil, nil
			}
			record := held
			held = nil
			lastLine = heldEnd
			return heldLine, record, nil
		}

		record, err := reader.Read()
		if err != nil {
			return 0, nil, err
		}
		line, _ := reader.FieldPos(0)
		if lastLine > 0 && line > lastLine+1 {
			held, heldLine, heldEnd = record, line, recordEnd(reader, line, record)
			lastLine++
			return lastLine, nil, nil
		}
		lastLine = recordEnd(reader, line, record)
		return line, record, nil
	}
	return newCursor(ctx, s.baseSource, next, fh.Close), nil
}

// recordEnd is the last physical line of a record; quoted fields may span
// lines.
func recordEnd(reader *csv.Reader, start int, record []string) int {
	if len(record) == 0 {
		return start
	}
	line, _ := reader.FieldPos(len(record) - 1)
	return line + strings.Count(record[len(record)-1], "\n")
}
