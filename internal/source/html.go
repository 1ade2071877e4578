package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JonMunkholm/gridsource/internal/core"
)

// DefaultTableSelector picks the first table in the document.
const DefaultTableSelector = "table"

// ReadHTMLTable extracts rows from the first table matched by selector.
//
// The selector may match the table itself or an element containing it.
// The first row (normally the th cells) supplies the keys; every later row
// with at least one cell becomes a Row of trimmed cell text.
func ReadHTMLTable(r io.Reader, selector string) ([]core.Row, error) {
	if selector == "" {
		selector = DefaultTableSelector
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find(selector).First()
	if table.Length() > 0 && !table.Is("table") {
		table = table.Find("table").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table matches %q", selector)
	}

	trs := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		// Skip rows that belong to a nested table.
		return tr.Closest("table").IsSelection(table)
	})
	if trs.Length() == 0 {
		return nil, nil
	}

	keys := headerKeys(cellTexts(trs.First()))

	var rows []core.Row
	trs.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr)
		if len(cells) == 0 {
			return
		}
		var row core.Row
		for i, c := range cells {
			if i >= len(keys) {
				break
			}
			row.Set(keys[i], c)
		}
		rows = append(rows, row)
	})
	return rows, nil
}

func cellTexts(tr *goquery.Selection) []string {
	var out []string
	tr.ChildrenFiltered("th, td").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}
