package steamdb

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"ssg-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ids referenced as DLC in page text; saved pages mention them either
// as ">DLC n<" section labels or as "...DLC... (n)" headings
var dlcTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)>\s*DLC\s+(\d+)\s*<`),
	regexp.MustCompile(`(?i)\b\w*DLC\w*\b[^()]*\(\s*(\d+)\s*\)`),
}

// extractDLC collects add-on rows: a tr[data-appid] whose first cell
// repeats the id, intersected with the ids the page text actually
// labels as DLC, sorted ascending by id. Pages without a DLC section
// legitimately yield an empty result.
func extractDLC(doc *goquery.Document, raw []byte) []DLC {
	referenced := map[int64]bool{}
	for _, re := range dlcTextPatterns {
		for _, m := range re.FindAllSubmatch(raw, -1) {
			id, err := strconv.ParseInt(string(m[1]), 10, 64)
			if err == nil {
				referenced[id] = true
			}
		}
	}

	byID := map[int64]string{}
	doc.Find(`tr[data-appid]`).Each(func(_ int, row *goquery.Selection) {
		idStr := row.AttrOr("data-appid", "")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || !referenced[id] {
			return
		}

		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		if strings.TrimSpace(cells.Eq(0).Text()) != idStr {
			return
		}
		title := htmlutil.CleanText(cells.Eq(1).Text())
		if title == "" {
			return
		}
		if _, ok := byID[id]; !ok {
			byID[id] = title
		}
	})

	out := make([]DLC, 0, len(byID))
	for id, title := range byID {
		out = append(out, DLC{AppID: id, Title: title})
	}
	slices.SortFunc(out, func(a, b DLC) int {
		if a.AppID < b.AppID {
			return -1
		}
		if a.AppID > b.AppID {
			return 1
		}
		return 0
	})
	return out
}
