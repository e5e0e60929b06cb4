package db

type GameState struct {
	AppID        string
	Title        string
	Stage        string
	Fingerprint  string
	PagePath     string
	IconsFetched int64
	IconsTotal   int64
	LastError    string
	Notice       string
	CreatedAt    int64
	UpdatedAt    int64
}
