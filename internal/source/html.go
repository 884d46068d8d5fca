package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"groupwatch/internal/util"
)

// genericLinkText is anchor text that says nothing about the target; the
// href is the real cell value then.
var genericLinkText = map[string]struct{}{
	"":           {},
	"link":       {},
	"click here": {},
	"here":       {},
	"open":       {},
	"view":       {},
	"profile":    {},
	"page":       {},
}

type htmlSource struct {
	baseSource
}

func (s *htmlSource) Open(ctx context.Context) (Rows, error) {
	fh, err := os.Open(s.path)
	if err != nil {
		return nil, unavailable(s.name, err)
	}
	defer fh.Close()

	doc, err := goquery.NewDocumentFromReader(fh)
	if err != nil {
		return nil, unavailable(s.name, err)
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if t.Find("tr").Length() >= 2 {
			table = t
			return false
		}
		return true
	})
	if table == nil {
		return nil, unavailable(s.name, eris.Errorf("no table with rows in %s", s.path))
	}

	var records [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := []string{}
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cellValue(cell))
		})
		records = append(records, cells)
	})

	i := 0
	next := func() (int, []string, error) {
		if i >= len(records) {
			return 0, nil, io.EOF
		}
		i++
		return i, records[i-1], nil
	}
	return newCursor(ctx, s.baseSource, next, nil), nil
}

func cellValue(cell *goquery.Selection) string {
	text := util.CleanText(cell.Text())
	links := cell.Find("a[href]")
	if links.Length() != 1 {
		return text
	}
	if _, generic := genericLinkText[strings.ToLower(text)]; !generic {
		return text
	}
	href, _ := links.Attr("href")
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return text
}
