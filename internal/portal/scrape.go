package portal

// Summary-page extraction. The portal has no API for the account view, so
// everything here digs values out of the rendered HTML. Labels are the
// portal's own (Polish) detail headers; the selectors mirror the page
// structure: a #left column with contract details and a #right column with
// the reading table.

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/licznik-cli/licznik/internal/model"
)

const readingTimeLayout = "2006-01-02 15:04"

// Detail labels as rendered on the account page.
const (
	labelPPENumber      = "Numer PPE"
	labelSeller         = "Sprzedawca"
	labelClientType     = "Typ"
	labelContractPeriod = "Okres umowy"
	labelTariff         = "Taryfa"
	labelPPEAddress     = "Adres PPE"
	labelMeter          = "Licznik"
)

// ─── Page classification ─────────────────────────────────────────────────────

func isLoggedIn(doc *html.Node) bool {
	return findByID(doc, "loginForm") == nil
}

func isCaptchaShown(doc *html.Node) bool {
	return findElement(doc, "img", func(n *html.Node) bool {
		return attrVal(n, "name") == "captcha"
	}) != nil
}

func xsrfToken(doc *html.Node) string {
	input := findElement(doc, "input", func(n *html.Node) bool {
		return attrVal(n, "name") == "_antixsrf"
	})
	if input == nil {
		return ""
	}
	return attrVal(input, "value")
}

// ─── Meters ──────────────────────────────────────────────────────────────────

// scrapeMeters reads the meter-select form: every option pairs the portal's
// internal meter id with a user-facing description.
func scrapeMeters(doc *html.Node) []model.Meter {
	sel := findElement(doc, "select", func(n *html.Node) bool {
		return attrVal(n, "name") == "meterSelectF"
	})
	if sel == nil {
		return nil
	}
	var meters []model.Meter
	for _, opt := range findAllElements(sel, "option", nil) {
		id := strings.TrimSpace(attrVal(opt, "value"))
		desc := nodeText(opt)
		if id == "" {
			continue
		}
		meters = append(meters, model.Meter{ID: id, Description: desc})
	}
	return meters
}

// scrapeMeterNumber finds the meter number shown next to the "Licznik" header.
func scrapeMeterNumber(doc *html.Node) string {
	left := findByID(doc, "left")
	if left == nil {
		return ""
	}
	label := findElement(left, "div", func(n *html.Node) bool {
		return ownText(n) == labelMeter
	})
	if label == nil || label.Parent == nil {
		return ""
	}
	if b := findElement(label.Parent, "b", nil); b != nil {
		return nodeText(b)
	}
	return ""
}

// scrapeMeterID resolves the portal-internal id for a meter number via the
// meter-select options.
func scrapeMeterID(doc *html.Node, meterNumber string) string {
	for _, m := range scrapeMeters(doc) {
		if strings.Contains(m.Description, meterNumber) {
			return m.ID
		}
	}
	return ""
}

// ─── Contract details ────────────────────────────────────────────────────────

// detailInfo returns the text following a bold detail header in the #left
// details block, e.g. detailInfo(doc, "Sprzedawca") → seller name.
func detailInfo(doc *html.Node, label string) string {
	b := detailHeader(doc, label)
	if b == nil {
		return ""
	}
	// Header sits inside a span; the value is the text of the row holding it.
	row := b.Parent
	if row != nil {
		row = row.Parent
	}
	if row == nil {
		return ""
	}
	return ownText(row)
}

// detailSpanInfo is the variant for rows where the value sits in its own span
// (the tariff row), not in loose row text.
func detailSpanInfo(doc *html.Node, label string) string {
	b := detailHeader(doc, label)
	if b == nil || b.Parent == nil || b.Parent.Parent == nil {
		return ""
	}
	for _, span := range findAllElements(b.Parent.Parent, "span", nil) {
		if findElement(span, "b", nil) != nil {
			continue // the header's own span
		}
		if v := nodeText(span); v != "" {
			return v
		}
	}
	return ""
}

// detailDivInfo is the variant for rows where the value sits in a nested div
// (the PPE address row).
func detailDivInfo(doc *html.Node, label string) string {
	b := detailHeader(doc, label)
	if b == nil || b.Parent == nil || b.Parent.Parent == nil {
		return ""
	}
	if div := findElement(b.Parent.Parent, "div", nil); div != nil {
		return nodeText(div)
	}
	return ""
}

func detailHeader(doc *html.Node, label string) *html.Node {
	left := findByID(doc, "left")
	if left == nil {
		return nil
	}
	return findElement(left, "b", func(n *html.Node) bool {
		return nodeText(n) == label
	})
}

// ─── Readings table ──────────────────────────────────────────────────────────

// scrapeReadings collects every reading row from the #right table. Each row
// has a description cell (name + timestamp) and a value cell.
func scrapeReadings(doc *html.Node) []model.MeterReading {
	right := findByID(doc, "right")
	if right == nil {
		return nil
	}
	table := findElement(right, "table", nil)
	if table == nil {
		return nil
	}
	var readings []model.MeterReading
	for _, tr := range findAllElements(table, "tr", nil) {
		first := findElement(tr, "td", func(n *html.Node) bool {
			return hasClass(n, "first")
		})
		last := findElement(tr, "td", func(n *html.Node) bool {
			return hasClass(n, "last")
		})
		if first == nil || last == nil {
			continue
		}
		divs := findAllElements(first, "div", nil)
		if len(divs) == 0 {
			continue
		}
		reading := model.MeterReading{Name: nodeText(divs[0])}
		if len(divs) > 1 {
			if ts, err := time.Parse(readingTimeLayout, nodeText(divs[1])); err == nil {
				reading.Taken = ts
			}
		}
		span := findElement(last, "span", nil)
		if span == nil {
			continue
		}
		v, ok := parseDecimal(nodeText(span))
		if !ok {
			continue
		}
		reading.Value = v
		readings = append(readings, reading)
	}
	return readings
}

// scrapeSummary assembles the full account summary from one data page.
func scrapeSummary(doc *html.Node) *model.MeterSummary {
	number := scrapeMeterNumber(doc)
	return &model.MeterSummary{
		MeterNumber:    number,
		MeterID:        scrapeMeterID(doc, number),
		PPENumber:      detailInfo(doc, labelPPENumber),
		PPEAddress:     detailDivInfo(doc, labelPPEAddress),
		Seller:         detailInfo(doc, labelSeller),
		ClientType:     detailInfo(doc, labelClientType),
		ContractPeriod: detailInfo(doc, labelContractPeriod),
		Tariff:         detailSpanInfo(doc, labelTariff),
		Readings:       scrapeReadings(doc),
	}
}

// ─── Node helpers ────────────────────────────────────────────────────────────

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findByID(root *html.Node, id string) *html.Node {
	return findElement(root, "", func(n *html.Node) bool {
		return attrVal(n, "id") == id
	})
}

// findElement returns the first descendant element named tag (any tag when
// empty) matching the predicate (any element when nil), in document order.
// The root itself is never a match.
func findElement(root *html.Node, tag string, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil && found == nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return true
			}
			if tag != "" && n.Data != tag {
				return true
			}
			if match != nil && !match(n) {
				return true
			}
			found = n
			return false
		})
	}
	return found
}

func findAllElements(root *html.Node, tag string, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.Data == tag && (match == nil || match(n)) {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// nodeText returns all text under n, whitespace-collapsed.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

// ownText returns only the direct text children of n, collapsed.
func ownText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// parseDecimal parses the portal's decimal notation (comma separator).
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
