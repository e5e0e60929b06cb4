package steamdb

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	"ssg-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var appIDPath = regexp.MustCompile(`(?i)/app/(\d+)(?:/stats)?/?`)
var rawCanonicalLink = regexp.MustCompile(
	`(?i)<link\s+rel=["']canonical["']\s+href=["']https?://steamdb\.info/app/(\d+)/`,
)
var digitRun = regexp.MustCompile(`\d+`)

// Fingerprint returns the content fingerprint of a saved page.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ExtractAppID resolves the app id from page metadata: the canonical
// link first, then a raw-markup scan (saved pages occasionally mangle
// the head), then the og:url meta tag. Returns "" when the page holds
// no usable identifier.
func ExtractAppID(doc *goquery.Document, raw []byte) string {
	href := doc.Find(`link[rel="canonical"]`).First().AttrOr("href", "")
	if m := appIDPath.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if m := rawCanonicalLink.FindSubmatch(raw); m != nil {
		return string(m[1])
	}
	og := doc.Find(`meta[property="og:url"]`).First().AttrOr("content", "")
	if m := appIDPath.FindStringSubmatch(og); m != nil {
		return m[1]
	}
	return ""
}

// IdentifyAppID resolves the app id for a saved page, preferring page
// metadata and falling back to the filename the page was saved under.
// Returns "" when neither yields an identifier.
func IdentifyAppID(raw []byte, savedPath string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err == nil {
		if id := ExtractAppID(doc, raw); id != "" {
			return id
		}
	}
	return AppIDFromFilename(savedPath)
}

// AppIDFromFilename falls back to the name the page was saved under,
// taking the first run of digits ("730 stats.html", "app_730.html").
func AppIDFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return digitRun.FindString(base)
}

// ExtractTitle resolves the game title, falling back from the page
// heading to the document title with the SteamDB suffix trimmed.
func ExtractTitle(doc *goquery.Document) string {
	title := htmlutil.CleanText(doc.Find(`h1[itemprop="name"]`).First().Text())
	if title != "" {
		return title
	}
	title = htmlutil.CleanText(doc.Find("title").First().Text())
	if idx := strings.Index(title, " · "); idx >= 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(strings.TrimSuffix(title, "- SteamDB"))
}
