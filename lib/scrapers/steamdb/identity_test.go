package steamdb

import (
	"bytes"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFromString(t *testing.T, markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(markup)))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractAppIDFromCanonicalLink(t *testing.T) {
	raw := readFixture(t, "12345_stats.html")
	doc := docFromString(t, string(raw))
	require.Equal(t, "12345", ExtractAppID(doc, raw))
}

func TestExtractAppIDFallbacks(t *testing.T) {
	// mangled head: the canonical link survives only in the raw bytes
	raw := []byte(`<link rel="canonical" href="https://steamdb.info/app/440/stats/">`)
	doc := docFromString(t, `<html><body></body></html>`)
	require.Equal(t, "440", ExtractAppID(doc, raw))

	// og:url only
	doc = docFromString(t, `<html><head><meta property="og:url" content="https://steamdb.info/app/570/stats/"></head></html>`)
	require.Equal(t, "570", ExtractAppID(doc, nil))

	// nothing usable
	doc = docFromString(t, `<html><body>hello</body></html>`)
	require.Equal(t, "", ExtractAppID(doc, []byte("hello")))
}

func TestAppIDFromFilename(t *testing.T) {
	testCases := []struct {
		path     string
		expected string
	}{
		{"/drop/730 stats.html", "730"},
		{"/drop/app_12345.html", "12345"},
		{"/drop/SomeGame.html", ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, AppIDFromFilename(test.path))
	}
}

func TestExtractTitleFallback(t *testing.T) {
	doc := docFromString(t, `<html><head><title>Example Game · AppID: 12345 · SteamDB</title></head></html>`)
	require.Equal(t, "Example Game", ExtractTitle(doc))
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint([]byte("same"))
	b := Fingerprint([]byte("same"))
	c := Fingerprint([]byte("different"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 64)
}
