package db

import (
	"context"
	"database/sql"
)

const getGameState = `
SELECT app_id, title, stage, fingerprint, page_path, icons_fetched, icons_total, last_error, notice, created_at, updated_at
FROM game_state WHERE app_id = ?
`

func (q *Queries) GetGameState(ctx context.Context, appID string) (GameState, error) {
	row := q.db.QueryRowContext(ctx, getGameState, appID)
	var g GameState
	err := row.Scan(
		&g.AppID, &g.Title, &g.Stage, &g.Fingerprint, &g.PagePath,
		&g.IconsFetched, &g.IconsTotal, &g.LastError, &g.Notice,
		&g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

const listGameStates = `
SELECT app_id, title, stage, fingerprint, page_path, icons_fetched, icons_total, last_error, notice, created_at, updated_at
FROM game_state ORDER BY app_id
`

func (q *Queries) ListGameStates(ctx context.Context) ([]GameState, error) {
	rows, err := q.db.QueryContext(ctx, listGameStates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameState
	for rows.Next() {
		var g GameState
		err := rows.Scan(
			&g.AppID, &g.Title, &g.Stage, &g.Fingerprint, &g.PagePath,
			&g.IconsFetched, &g.IconsTotal, &g.LastError, &g.Notice,
			&g.CreatedAt, &g.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

const upsertGameState = `
INSERT INTO game_state (app_id, title, stage, fingerprint, page_path, icons_fetched, icons_total, last_error, notice, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, 0, '', '', ?, ?)
ON CONFLICT (app_id) DO UPDATE SET
    title = excluded.title,
    stage = excluded.stage,
    fingerprint = excluded.fingerprint,
    page_path = excluded.page_path,
    icons_fetched = 0,
    icons_total = 0,
    last_error = '',
    notice = '',
    updated_at = excluded.updated_at
`

type UpsertGameStateParams struct {
	AppID       string
	Title       string
	Stage       string
	Fingerprint string
	PagePath    string
	Now         int64
}

func (q *Queries) UpsertGameState(ctx context.Context, arg UpsertGameStateParams) error {
	_, err := q.db.ExecContext(
		ctx, upsertGameState,
		arg.AppID, arg.Title, arg.Stage, arg.Fingerprint, arg.PagePath,
		arg.Now, arg.Now,
	)
	return err
}

const setStage = `
UPDATE game_state SET stage = ?, updated_at = ? WHERE app_id = ?
`

type SetStageParams struct {
	AppID string
	Stage string
	Now   int64
}

func (q *Queries) SetStage(ctx context.Context, arg SetStageParams) error {
	_, err := q.db.ExecContext(ctx, setStage, arg.Stage, arg.Now, arg.AppID)
	return err
}

const setStageError = `
UPDATE game_state SET stage = ?, last_error = ?, updated_at = ? WHERE app_id = ?
`

type SetStageErrorParams struct {
	AppID     string
	Stage     string
	LastError string
	Now       int64
}

func (q *Queries) SetStageError(ctx context.Context, arg SetStageErrorParams) error {
	_, err := q.db.ExecContext(ctx, setStageError, arg.Stage, arg.LastError, arg.Now, arg.AppID)
	return err
}

const setTitle = `
UPDATE game_state SET title = ?, updated_at = ? WHERE app_id = ?
`

type SetTitleParams struct {
	AppID string
	Title string
	Now   int64
}

func (q *Queries) SetTitle(ctx context.Context, arg SetTitleParams) error {
	_, err := q.db.ExecContext(ctx, setTitle, arg.Title, arg.Now, arg.AppID)
	return err
}

const setNotice = `
UPDATE game_state SET notice = ?, updated_at = ? WHERE app_id = ?
`

type SetNoticeParams struct {
	AppID  string
	Notice string
	Now    int64
}

func (q *Queries) SetNotice(ctx context.Context, arg SetNoticeParams) error {
	_, err := q.db.ExecContext(ctx, setNotice, arg.Notice, arg.Now, arg.AppID)
	return err
}

const setIconCounts = `
UPDATE game_state SET icons_fetched = ?, icons_total = ?, updated_at = ? WHERE app_id = ?
`

type SetIconCountsParams struct {
	AppID        string
	IconsFetched int64
	IconsTotal   int64
	Now          int64
}

func (q *Queries) SetIconCounts(ctx context.Context, arg SetIconCountsParams) error {
	_, err := q.db.ExecContext(ctx, setIconCounts, arg.IconsFetched, arg.IconsTotal, arg.Now, arg.AppID)
	return err
}

const deleteGameState = `
DELETE FROM game_state WHERE app_id = ?
`

func (q *Queries) DeleteGameState(ctx context.Context, appID string) error {
	_, err := q.db.ExecContext(ctx, deleteGameState, appID)
	return err
}

var ErrNotFound = sql.ErrNoRows
