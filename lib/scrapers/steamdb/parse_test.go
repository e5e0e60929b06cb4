package steamdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ssg-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestParseModernPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:steamdb")
	defer cleanup()

	raw := readFixture(t, "12345_stats.html")
	result, err := Parse(context.Background(), raw, "12345")
	require.NoError(t, err)

	require.Equal(t, "Example Game", result.Title)
	require.Equal(t, "achievement_blocks", result.Strategy)
	require.Len(t, result.Achievements, 2)

	a := result.Achievements[0]
	require.Equal(t, "ACH_A", a.ApiName)
	require.Equal(t, "First Steps", a.DisplayName)
	require.Equal(t, "Complete the tutorial", a.Description)
	require.False(t, a.Hidden)
	require.Equal(
		t,
		"https://shared.fastly.steamstatic.com/community_assets/images/apps/12345/1fc5bbf3a0c4723e83d8e4f527efd1ce80273f2a.jpg",
		a.IconURL,
	)
	require.Equal(
		t,
		"https://shared.fastly.steamstatic.com/community_assets/images/apps/12345/ae0b7de5327e4b7609a1a7ba9b3df3f6e3f80a21.jpg",
		a.GrayIconURL,
	)

	b := result.Achievements[1]
	require.Equal(t, "ACH_B", b.ApiName)
	require.True(t, b.Hidden)

	require.Len(t, result.DLC, 1)
	require.Equal(t, int64(67890), result.DLC[0].AppID)
	require.Equal(t, "DLC_X", result.DLC[0].Title)

	require.False(t, result.NoAchievementsMarker)
}

func TestParseDelistedPageWithoutDLCSection(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:steamdb")
	defer cleanup()

	raw := readFixture(t, "54321_delisted.html")
	result, err := Parse(context.Background(), raw, "54321")
	require.NoError(t, err)

	require.Equal(t, "stats_table", result.Strategy)
	require.Len(t, result.Achievements, 2)
	require.Empty(t, result.DLC)

	require.Equal(t, "WIN_ONE", result.Achievements[0].ApiName)
	require.Equal(t, "Winner", result.Achievements[0].DisplayName)
	require.Equal(t, "Win a round", result.Achievements[0].Description)
	require.False(t, result.Achievements[0].Hidden)
	require.Contains(t, result.Achievements[0].IconURL, "7e240de74fb1ed08fa08d38063f6a6a91462a815.jpg")

	require.Equal(t, "WIN_ALL", result.Achievements[1].ApiName)
	require.True(t, result.Achievements[1].Hidden)
}

func TestParseNoAchievementsMarker(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:steamdb")
	defer cleanup()

	raw := readFixture(t, "77777_no_achievements.html")
	result, err := Parse(context.Background(), raw, "77777")
	require.NoError(t, err)

	require.Empty(t, result.Achievements)
	require.Empty(t, result.DLC)
	require.True(t, result.NoAchievementsMarker)
}

func TestParseAmbiguousEmptyPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:steamdb")
	defer cleanup()

	raw := readFixture(t, "88888_ambiguous.html")
	result, err := Parse(context.Background(), raw, "88888")
	require.NoError(t, err)

	require.Empty(t, result.Achievements)
	require.Empty(t, result.DLC)
	require.False(t, result.NoAchievementsMarker)
}

func TestStripMultiplayer(t *testing.T) {
	achs := []Achievement{
		{ApiName: "SOLO"},
		{ApiName: "TEAM", Multiplayer: true},
		{ApiName: "SOLO_2"},
	}
	out := StripMultiplayer(achs)
	require.Len(t, out, 2)
	require.Equal(t, "SOLO", out[0].ApiName)
	require.Equal(t, "SOLO_2", out[1].ApiName)
}

func TestCleanHiddenDescriptions(t *testing.T) {
	achs := []Achievement{
		{ApiName: "A", Description: "Hidden achievement: Beat the game"},
		{ApiName: "B", Description: "Plain description"},
	}
	out := CleanHiddenDescriptions(achs)
	require.Equal(t, "Beat the game", out[0].Description)
	require.Equal(t, "Plain description", out[1].Description)
}
