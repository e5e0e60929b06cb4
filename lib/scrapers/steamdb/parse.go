package steamdb

import (
	"bytes"
	"context"

	"ssg-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ssg.lib.scrapers.steamdb")

var noAchievementsMarkers = []string{
	"noachievements",
	"gamehasnoachievements",
	"doesnothaveachievements",
}

// Parse extracts the canonical record set from a saved stats page.
// Achievement strategies are tried in priority order; the first
// non-empty result wins. Missing fields map to defaults rather than
// failing the parse, and a page yielding neither achievements nor DLC
// is not an error here.
func Parse(ctx context.Context, raw []byte, appID string) (ParseResult, error) {
	ctx, span := tracer.Start(ctx, "Parse")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse markup")
		return ParseResult{}, err
	}

	result := ParseResult{
		Title: ExtractTitle(doc),
	}

	for _, strategy := range achievementStrategies {
		achs := strategy.extract(doc, appID)
		if len(achs) > 0 {
			result.Achievements = dedupeAchievements(achs)
			result.Strategy = strategy.name
			break
		}
	}

	result.DLC = extractDLC(doc, raw)
	result.NoAchievementsMarker = hasNoAchievementsMarker(doc)

	span.SetAttributes(
		attribute.String("strategy", result.Strategy),
		attribute.Int("achievements", len(result.Achievements)),
		attribute.Int("dlc", len(result.DLC)),
	)
	return result, nil
}

func hasNoAchievementsMarker(doc *goquery.Document) bool {
	return textutil.MatchName(doc.Find("body").Text(), noAchievementsMarkers)
}
