// Package source reads named tabular sources (xlsx sheets, delimited files,
// HTML table exports) into RawRow sequences.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"groupwatch/internal"
	"groupwatch/internal/config"
)

// ErrSourceUnavailable marks a source that could not be opened. A run logs
// it and carries on with the other sources.
var ErrSourceUnavailable = eris.New("source unavailable")

// headerProbeRows bounds how many leading non-empty rows are inspected when
// looking for the header row.
const headerProbeRows = 3

type Source interface {
	Name() string
	Mapping() *Mapping
	// Open starts a fresh pass over the source. It may be called again after
	// the previous Rows is closed.
	Open(ctx context.Context) (Rows, error)
}

type Rows interface {
	Next() bool
	Row() internal.RawRow
	Header() []string
	Err() error
	Close() error
}

// New builds the reader for a configured source.
func New(cfg config.SourceConfig) (Source, error) {
	mapping, err := NewMapping(cfg.Columns)
	if err != nil {
		return nil, eris.Wrapf(err, "source %q", cfg.Name)
	}
	base := baseSource{name: cfg.Name, path: cfg.Path, headerRow: cfg.HeaderRow, mapping: mapping}

	switch cfg.SourceKind() {
	case "xlsx":
		return &xlsxSource{baseSource: base, sheet: cfg.SheetName()}, nil
	case "csv":
		return &csvSource{baseSource: base}, nil
	case "html":
		return &htmlSource{baseSource: base}, nil
	default:
		return nil, eris.Wrapf(ErrSourceUnavailable, "source %q: unsupported kind for %s", cfg.Name, cfg.Path)
	}
}

type baseSource struct {
	name      string
	path      string
	headerRow int
	mapping   *Mapping
}

func (b baseSource) Name() string      { return b.name }
func (b baseSource) Mapping() *Mapping { return b.mapping }

func unavailable(name string, err error) error {
	return eris.Wrapf(ErrSourceUnavailable, "source %q: %v", name, err)
}

// recordFunc yields the next physical row with its 1-based ordinal, or
// io.EOF when the source is exhausted.
type recordFunc func() (ordinal int, cells []string, err error)

type pendingRecord struct {
	ordinal int
	cells   []string
}

// cursor turns raw records into RawRows: it locates the header, labels the
// cells and keeps physical ordinals so ids stay stable across runs.
type cursor struct {
	ctx       context.Context
	source    string
	next      recordFunc
	closeFn   func() error
	mapping   *Mapping
	headerRow int

	header  []string
	queue   []pendingRecord
	started bool
	done    bool
	row     internal.RawRow
	err     error
}

func newCursor(ctx context.Context, b baseSource, next recordFunc, closeFn func() error) *cursor {
	return &cursor{
		ctx:       ctx,
		source:    b.name,
		next:      next,
		closeFn:   closeFn,
		mapping:   b.mapping,
		headerRow: b.headerRow,
	}
}

func (c *cursor) Header() []string {
	if !c.started {
		c.start()
	}
	return c.header
}

func (c *cursor) Row() internal.RawRow { return c.row }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	if c.closeFn == nil {
		return nil
	}
	fn := c.closeFn
	c.closeFn = nil
	return fn()
}

func (c *cursor) Next() bool {
	if !c.started {
		c.start()
	}
	if c.done || c.err != nil {
		return false
	}

	var rec pendingRecord
	if len(c.queue) > 0 {
		rec, c.queue = c.queue[0], c.queue[1:]
	} else {
		ordinal, cells, err := c.read()
		if err == io.EOF {
			c.done = true
			return false
		}
		if err != nil {
			c.err = err
			return false
		}
		rec = pendingRecord{ordinal: ordinal, cells: cells}
	}

	c.row = c.label(rec)
	return true
}

func (c *cursor) read() (int, []string, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, nil, err
	}
	ordinal, cells, err := c.next()
	if err != nil && err != io.EOF {
		return 0, nil, eris.Wrapf(err, "source %q: read row", c.source)
	}
	return ordinal, cells, err
}

func (c *cursor) start() {
	c.started = true
	if c.headerRow > 0 {
		c.startAt(c.headerRow)
		return
	}

	var probes []pendingRecord
	nonEmpty := 0
	for nonEmpty < headerProbeRows {
		ordinal, cells, err := c.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.err = err
			return
		}
		if blank(cells) {
			if len(probes) > 0 {
				probes = append(probes, pendingRecord{ordinal: ordinal, cells: cells})
			}
			continue
		}
		nonEmpty++
		probes = append(probes, pendingRecord{ordinal: ordinal, cells: cells})
		if c.knownHeader(cells) {
			c.header = labels(cells)
			return
		}
	}

	// No row looked like a known header: the first non-empty row is the
	// header and the rest were data.
	if len(probes) == 0 {
		c.done = true
		return
	}
	c.header = labels(probes[0].cells)
	c.queue = probes[1:]
}

func (c *cursor) startAt(headerRow int) {
	for {
		ordinal, cells, err := c.read()
		if err == io.EOF {
			c.done = true
			return
		}
		if err != nil {
			c.err = err
			return
		}
		if ordinal >= headerRow {
			c.header = labels(cells)
			return
		}
	}
}

func (c *cursor) knownHeader(cells []string) bool {
	for _, cell := range cells {
		if c.mapping.Known(cell) {
			return true
		}
	}
	return false
}

func (c *cursor) label(rec pendingRecord) internal.RawRow {
	row := internal.RawRow{
		Source:  c.source,
		Ordinal: rec.ordinal,
		Columns: c.header,
		Values:  make(map[string]string, len(c.header)),
	}
	for i, col := range c.header {
		if i < len(rec.cells) {
			row.Values[col] = rec.cells[i]
		} else {
			row.Values[col] = ""
		}
	}
	for i := len(c.header); i < len(rec.cells); i++ {
		if strings.TrimSpace(rec.cells[i]) == "" {
			continue
		}
		col := fmt.Sprintf("Column %d", i+1)
		row.Columns = append(row.Columns[:len(row.Columns):len(row.Columns)], col)
		row.Values[col] = rec.cells[i]
	}
	return row
}

// labels turns a header row into unique column labels. Blank labels become
// "Column N", repeats get a " #2" suffix.
func labels(cells []string) []string {
	out := make([]string, len(cells))
	seen := map[string]int{}
	for i, cell := range cells {
		label := strings.TrimSpace(cell)
		if label == "" {
			label = fmt.Sprintf("Column %d", i+1)
		}
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s #%d", label, n)
		}
		out[i] = label
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
