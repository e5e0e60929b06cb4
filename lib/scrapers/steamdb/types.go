package steamdb

// Achievement is one unlockable extracted from a stats page.
// ApiName is unique within a game; icon URLs may be empty when the
// markup carries no image reference for the entry.
type Achievement struct {
	ApiName     string
	DisplayName string
	Description string
	Hidden      bool
	Multiplayer bool
	// unlocked (color) icon
	IconURL string
	// locked (grayscale) icon
	GrayIconURL string
}

// DLC is one add-on row extracted from a stats page.
type DLC struct {
	AppID int64
	Title string
}

// ParseResult is the canonical output of parsing one saved page.
type ParseResult struct {
	Title        string
	Achievements []Achievement
	DLC          []DLC
	// true when the page carries the "no achievements" marker text an
	// active listing shows for games without achievements
	NoAchievementsMarker bool
	// name of the extraction strategy that produced the achievements
	Strategy string
}
