package steamdb

import (
	"fmt"
	"strings"

	"ssg-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const communityAssetsBase = "https://shared.fastly.steamstatic.com/community_assets/images/apps/%s/%s"

const hiddenDescPrefix = "Hidden achievement:"

// the stats page layout has shifted across site eras, and delisted
// games render a reduced variant; strategies are tried in order and
// the first that yields any records wins.
var achievementStrategies = []struct {
	name    string
	extract func(doc *goquery.Document, appID string) []Achievement
}{
	{"achievement_blocks", extractAchievementBlocks},
	{"stats_table", extractStatsTable},
}

// extractAchievementBlocks handles the current layout: one
// div#achievement-* block per entry.
func extractAchievementBlocks(doc *goquery.Document, appID string) []Achievement {
	var out []Achievement
	doc.Find(`div[id^="achievement-"]`).Each(func(_ int, div *goquery.Selection) {
		api := htmlutil.CleanText(div.Find(".achievement_api").First().Text())
		if api == "" {
			return
		}

		hidden := div.Find("span.achievement_spoiler").Length() > 0
		if !hidden {
			div.Find("i").EachWithBreak(func(_ int, tag *goquery.Selection) bool {
				if strings.HasPrefix(strings.TrimSpace(tag.Text()), hiddenDescPrefix) {
					hidden = true
					return false
				}
				return true
			})
		}

		group := htmlutil.CleanText(div.Find("div.achievement_group").First().Text())

		out = append(out, Achievement{
			ApiName:     api,
			DisplayName: htmlutil.CleanText(div.Find(".achievement_name").First().Text()),
			Description: htmlutil.CleanText(div.Find(".achievement_desc").First().Text()),
			Hidden:      hidden,
			Multiplayer: group == "Multiplayer",
			IconURL:     iconURL(appID, div.Find(".achievement_image").First()),
			GrayIconURL: iconURL(appID, div.Find(".achievement_image_small").First()),
		})
	})
	return out
}

// extractStatsTable handles the older table layout still served on
// some delisted pages: one tr[data-name] row per entry.
func extractStatsTable(doc *goquery.Document, appID string) []Achievement {
	var out []Achievement
	doc.Find(`tr[data-name]`).Each(func(_ int, row *goquery.Selection) {
		api := strings.TrimSpace(row.AttrOr("data-name", ""))
		if api == "" {
			return
		}

		cells := row.Find("td")
		var displayName, description string
		if cells.Length() >= 2 {
			displayName = htmlutil.CleanText(cells.Eq(1).Text())
		}
		if cells.Length() >= 3 {
			description = htmlutil.CleanText(cells.Eq(2).Text())
		}
		// the table layout folds name and description into one cell on
		// some eras, with the description in a nested element
		if nested := row.Find(".achievement_desc"); nested.Length() > 0 {
			description = htmlutil.CleanText(nested.First().Text())
		}

		out = append(out, Achievement{
			ApiName:     api,
			DisplayName: displayName,
			Description: description,
			Hidden:      row.HasClass("hidden_achievement") || row.Find(".achievement_spoiler").Length() > 0,
			IconURL:     iconURL(appID, row.Find("img").First()),
			GrayIconURL: iconURL(appID, row.Find("img.gray, img.small").First()),
		})
	})
	return out
}

// iconURL resolves an icon reference to an absolute URL. Only explicit
// references in markup are used: an absolute img src, or the data-name
// image hash joined with the community assets base for the app.
func iconURL(appID string, sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	src := sel.AttrOr("src", "")
	if src == "" {
		src = sel.Find("img").First().AttrOr("src", "")
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}

	name := strings.TrimSpace(sel.AttrOr("data-name", ""))
	if name == "" {
		name = strings.TrimSpace(sel.Find("[data-name]").First().AttrOr("data-name", ""))
	}
	if name == "" || appID == "" {
		return ""
	}
	if !strings.HasSuffix(strings.ToLower(name), ".jpg") {
		name += ".jpg"
	}
	return fmt.Sprintf(communityAssetsBase, appID, name)
}

func dedupeAchievements(achs []Achievement) []Achievement {
	seen := make(map[string]bool, len(achs))
	out := achs[:0]
	for _, a := range achs {
		if seen[a.ApiName] {
			continue
		}
		seen[a.ApiName] = true
		out = append(out, a)
	}
	return out
}

// StripMultiplayer removes achievements belonging to the Multiplayer
// group, preserving order.
func StripMultiplayer(achs []Achievement) []Achievement {
	out := achs[:0]
	for _, a := range achs {
		if a.Multiplayer {
			continue
		}
		out = append(out, a)
	}
	return out
}

// CleanHiddenDescriptions strips the "Hidden achievement:" prefix the
// site prepends to the description of spoilered entries.
func CleanHiddenDescriptions(achs []Achievement) []Achievement {
	for i, a := range achs {
		if strings.HasPrefix(a.Description, hiddenDescPrefix) {
			achs[i].Description = strings.TrimSpace(strings.TrimPrefix(a.Description, hiddenDescPrefix))
		}
	}
	return achs
}
