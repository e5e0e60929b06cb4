package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ssg-backend/services/tracker/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ssg.services.tracker")

// Stage is the processing stage of one game.
type Stage string

const (
	StageNew      Stage = "NEW"
	StageParsed   Stage = "PARSED"
	StageFetching Stage = "FETCHING"
	StageComplete Stage = "COMPLETE"
	StageError    Stage = "ERROR"
)

func (s Stage) String() string {
	return string(s)
}

func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageError
}

// any stage may additionally move to ERROR; leaving ERROR happens
// through Begin, which restarts the record at NEW
var validTransitions = map[Stage][]Stage{
	StageNew:      {StageParsed},
	StageParsed:   {StageFetching, StageComplete},
	StageFetching: {StageComplete},
	StageComplete: {StageParsed},
}

func canTransition(from, to Stage) bool {
	if to == StageError {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service is the single authority over persisted per-game progress.
// It owns the state rows and the stored copies of ingested pages.
type Service struct {
	db       *sql.DB
	qry      *db.Queries
	pagesDir string
}

func NewService(database *sql.DB, pagesDir string) (Service, error) {
	err := os.MkdirAll(pagesDir, 0755)
	if err != nil {
		return Service{}, err
	}
	return Service{
		db:       database,
		qry:      db.New(database),
		pagesDir: pagesDir,
	}, nil
}

func (s Service) Get(ctx context.Context, appID string) (db.GameState, bool, error) {
	g, err := s.qry.GetGameState(ctx, appID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.GameState{}, false, nil
	}
	if err != nil {
		return db.GameState{}, false, err
	}
	return g, true, nil
}

func (s Service) List(ctx context.Context) ([]db.GameState, error) {
	return s.qry.ListGameStates(ctx)
}

// IsDuplicate reports whether a page with the given fingerprint has
// already been fully processed for this game.
func IsDuplicate(g db.GameState, fingerprint string) bool {
	return Stage(g.Stage) == StageComplete && g.Fingerprint == fingerprint
}

// Begin stores a copy of the ingested page and starts (or restarts)
// the game's record at NEW, clearing previous counters and errors.
func (s Service) Begin(ctx context.Context, appID, title, fingerprint string, raw []byte) (db.GameState, error) {
	ctx, span := tracer.Start(ctx, "Begin")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID))

	pagePath := s.StoredPagePath(appID)
	err := os.WriteFile(pagePath, raw, 0644)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store page copy")
		return db.GameState{}, err
	}

	err = s.qry.UpsertGameState(ctx, db.UpsertGameStateParams{
		AppID:       appID,
		Title:       title,
		Stage:       StageNew.String(),
		Fingerprint: fingerprint,
		PagePath:    pagePath,
		Now:         time.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return db.GameState{}, err
	}
	return s.qry.GetGameState(ctx, appID)
}

// Transition moves a game to the given stage, rejecting transitions
// the state machine does not allow.
func (s Service) Transition(ctx context.Context, appID string, to Stage) error {
	ctx, span := tracer.Start(ctx, "Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("app_id", appID),
		attribute.String("to", to.String()),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	current, err := txqry.GetGameState(ctx, appID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	from := Stage(current.Stage)
	if !canTransition(from, to) {
		err := fmt.Errorf("invalid stage transition %s -> %s for app %s", from, to, appID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = txqry.SetStage(ctx, db.SetStageParams{
		AppID: appID,
		Stage: to.String(),
		Now:   time.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return tx.Commit()
}

// Quarantine moves a game to ERROR with a human-readable reason.
func (s Service) Quarantine(ctx context.Context, appID, reason string) error {
	ctx, span := tracer.Start(ctx, "Quarantine")
	defer span.End()
	span.SetAttributes(
		attribute.String("app_id", appID),
		attribute.String("reason", reason),
	)

	return s.qry.SetStageError(ctx, db.SetStageErrorParams{
		AppID:     appID,
		Stage:     StageError.String(),
		LastError: reason,
		Now:       time.Now().Unix(),
	})
}

// QuarantineUnidentified records a page whose identifier could not be
// determined at all; it gets a synthetic record keyed by its filename
// so the failure is visible in `list`.
func (s Service) QuarantineUnidentified(ctx context.Context, key, reason string) error {
	err := s.qry.UpsertGameState(ctx, db.UpsertGameStateParams{
		AppID: key,
		Stage: StageError.String(),
		Now:   time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return s.Quarantine(ctx, key, reason)
}

func (s Service) SetTitle(ctx context.Context, appID, title string) error {
	return s.qry.SetTitle(ctx, db.SetTitleParams{
		AppID: appID,
		Title: title,
		Now:   time.Now().Unix(),
	})
}

func (s Service) SetNotice(ctx context.Context, appID, notice string) error {
	return s.qry.SetNotice(ctx, db.SetNoticeParams{
		AppID:  appID,
		Notice: notice,
		Now:    time.Now().Unix(),
	})
}

func (s Service) SetIconCounts(ctx context.Context, appID string, fetched, total int64) error {
	return s.qry.SetIconCounts(ctx, db.SetIconCountsParams{
		AppID:        appID,
		IconsFetched: fetched,
		IconsTotal:   total,
		Now:          time.Now().Unix(),
	})
}

func (s Service) StoredPagePath(appID string) string {
	return filepath.Join(s.pagesDir, appID+".html")
}

// ReadStoredPage returns the page bytes a reprocess run re-parses,
// without any network access.
func (s Service) ReadStoredPage(ctx context.Context, appID string) ([]byte, error) {
	g, err := s.qry.GetGameState(ctx, appID)
	if err != nil {
		return nil, err
	}
	if g.PagePath == "" {
		return nil, fmt.Errorf("no stored page for app %s", appID)
	}
	return os.ReadFile(g.PagePath)
}

// Delete removes the game's record and its stored page copy. The
// shared asset cache is deliberately left untouched.
func (s Service) Delete(ctx context.Context, appID string) error {
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID))

	err := s.qry.DeleteGameState(ctx, appID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = os.Remove(s.StoredPagePath(appID))
	if err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove stored page")
		return err
	}
	return nil
}
