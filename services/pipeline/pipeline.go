package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ssg-backend/lib/scrapers/steamdb"
	"ssg-backend/lib/textutil"
	"ssg-backend/services/assembler"
	"ssg-backend/services/assets"
	"ssg-backend/services/tracker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ssg.services.pipeline")

var (
	// no app id could be resolved from the page or its filename
	ErrIdentityUnresolved = errors.New("could not resolve an app id")
	// some icons failed to download; the game stays resumable
	ErrFetchIncomplete = errors.New("icon fetching incomplete")
	// the artifact set could not be written
	ErrWriteFailed = errors.New("artifact write failed")
)

// Status classifies the outcome of one pipeline run for a page.
type Status string

const (
	StatusCompleted Status = "completed"
	// the page was already fully processed with identical content
	StatusSkipped Status = "skipped"
	// fetching was interrupted or partially failed; rerunning resumes
	StatusIncomplete Status = "incomplete"
	StatusErrored    Status = "errored"
)

// Outcome is the per-page result reported back to the CLI and the
// watch loop. Err is set for StatusErrored and StatusIncomplete.
type Outcome struct {
	Path   string
	AppID  string
	Title  string
	Status Status
	Notice string
	Err    error
	// true when a StatusErrored failure was persisted to the game's
	// state row as ERROR; unrecorded failures are internal faults
	ErrorRecorded bool
}

type Options struct {
	OutputRoot string
	// user-managed folder copied into every artifact set, may be empty
	ExtrasDir string

	StripMultiplayer        bool
	CleanHiddenDescriptions bool
}

// Pipeline runs saved pages through parse, fetch and assemble,
// recording progress in the tracker at every step.
type Pipeline struct {
	tracker tracker.Service
	fetcher *assets.Fetcher
	opts    Options
}

func New(trk tracker.Service, fetcher *assets.Fetcher, opts Options) *Pipeline {
	return &Pipeline{
		tracker: trk,
		fetcher: fetcher,
		opts:    opts,
	}
}

// Process ingests one saved page end to end. A page whose fingerprint
// matches an already completed run is skipped unless force is set;
// a page matching a quarantined run is also skipped, so the watch
// loop does not retry a known-bad page every poll.
func (p *Pipeline) Process(ctx context.Context, path string, force bool) Outcome {
	ctx, span := tracer.Start(ctx, "Process")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return p.errored(span, Outcome{Path: path}, fmt.Errorf("read page: %w", err))
	}
	fingerprint := steamdb.Fingerprint(raw)

	appID := steamdb.IdentifyAppID(raw, path)
	if appID == "" {
		key := "file:" + textutil.SafeFolderName(filepath.Base(path))
		reason := "no app id in page metadata or filename"
		if qerr := p.tracker.QuarantineUnidentified(ctx, key, reason); qerr != nil {
			return p.errored(span, Outcome{Path: path}, qerr)
		}
		out := p.errored(span, Outcome{Path: path}, fmt.Errorf("%w for %s", ErrIdentityUnresolved, path))
		out.ErrorRecorded = true
		return out
	}
	span.SetAttributes(attribute.String("app_id", appID))

	existing, found, err := p.tracker.Get(ctx, appID)
	if err != nil {
		return p.errored(span, Outcome{Path: path, AppID: appID}, err)
	}
	if found && !force && existing.Fingerprint == fingerprint {
		switch tracker.Stage(existing.Stage) {
		case tracker.StageComplete:
			slog.InfoContext(ctx, "skipping already processed page",
				"app_id", appID, "path", path)
			return Outcome{
				Path: path, AppID: appID, Title: existing.Title,
				Status: StatusSkipped,
				Notice: "already processed; identical page content",
			}
		case tracker.StageError:
			return Outcome{
				Path: path, AppID: appID, Title: existing.Title,
				Status: StatusSkipped,
				Notice: "quarantined: " + existing.LastError,
			}
		}
	}

	_, err = p.tracker.Begin(ctx, appID, existing.Title, fingerprint, raw)
	if err != nil {
		return p.errored(span, Outcome{Path: path, AppID: appID}, err)
	}

	out := p.run(ctx, appID, raw)
	out.Path = path
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Status))
	}
	return out
}

// Reprocess re-derives a completed game's artifacts from its stored
// page. The derived text files are discarded up front; the cached
// icons are kept, so no network access happens unless icons were
// never fetched.
func (p *Pipeline) Reprocess(ctx context.Context, appID string) Outcome {
	ctx, span := tracer.Start(ctx, "Reprocess")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID))

	g, found, err := p.tracker.Get(ctx, appID)
	if err != nil {
		return p.errored(span, Outcome{AppID: appID}, err)
	}
	if !found {
		return p.errored(span, Outcome{AppID: appID}, fmt.Errorf("no record for app %s", appID))
	}
	if tracker.Stage(g.Stage) != tracker.StageComplete {
		err := fmt.Errorf("app %s is %s, only completed games can be reprocessed", appID, g.Stage)
		return p.errored(span, Outcome{AppID: appID, Title: g.Title}, err)
	}

	raw, err := p.tracker.ReadStoredPage(ctx, appID)
	if err != nil {
		return p.errored(span, Outcome{AppID: appID, Title: g.Title}, fmt.Errorf("read stored page: %w", err))
	}

	err = p.tracker.Transition(ctx, appID, tracker.StageParsed)
	if err != nil {
		return p.errored(span, Outcome{AppID: appID, Title: g.Title}, err)
	}
	settingsDir := filepath.Join(assembler.GameDir(p.opts.OutputRoot, appID), assembler.SettingsDirName)
	for _, name := range assembler.DerivedTextFiles {
		err := os.Remove(filepath.Join(settingsDir, name))
		if err != nil && !os.IsNotExist(err) {
			return p.errored(span, Outcome{AppID: appID, Title: g.Title}, fmt.Errorf("discard %s: %w", name, err))
		}
	}

	out := p.run(ctx, appID, raw)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Status))
	}
	return out
}

// ProcessStored restarts a game from its stored page copy, without
// needing the original drop file. This is the retry path for games
// stuck in FETCHING or quarantined in ERROR; completed games go
// through Reprocess instead.
func (p *Pipeline) ProcessStored(ctx context.Context, appID string) Outcome {
	ctx, span := tracer.Start(ctx, "ProcessStored")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID))

	g, found, err := p.tracker.Get(ctx, appID)
	if err != nil {
		return p.errored(span, Outcome{AppID: appID}, err)
	}
	if !found {
		return p.errored(span, Outcome{AppID: appID}, fmt.Errorf("no record for app %s", appID))
	}
	if tracker.Stage(g.Stage) == tracker.StageComplete {
		err := fmt.Errorf("app %s is already complete; use reprocess", appID)
		return p.errored(span, Outcome{AppID: appID, Title: g.Title}, err)
	}

	raw, err := p.tracker.ReadStoredPage(ctx, appID)
	if err != nil {
		return p.errored(span, Outcome{AppID: appID, Title: g.Title}, fmt.Errorf("read stored page: %w", err))
	}

	// restart the record at NEW so a partial or quarantined run gets a
	// clean pass; the icon cache makes the refetch cheap
	_, err = p.tracker.Begin(ctx, appID, g.Title, steamdb.Fingerprint(raw), raw)
	if err != nil {
		return p.errored(span, Outcome{AppID: appID, Title: g.Title}, err)
	}

	out := p.run(ctx, appID, raw)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Status))
	}
	return out
}

// Delete removes a game's record, stored page and output folder. The
// shared icon cache is left alone; other games may reference the same
// files.
func (p *Pipeline) Delete(ctx context.Context, appID string) error {
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID))

	err := p.tracker.Delete(ctx, appID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = os.RemoveAll(assembler.GameDir(p.opts.OutputRoot, appID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove output folder")
		return err
	}
	return nil
}

// run takes a game from NEW (or PARSED, on reprocess) to COMPLETE.
func (p *Pipeline) run(ctx context.Context, appID string, raw []byte) Outcome {
	out := Outcome{AppID: appID}

	res, err := steamdb.Parse(ctx, raw, appID)
	if err != nil {
		return p.quarantine(ctx, out, "parse failed: "+err.Error(), err)
	}
	out.Title = res.Title
	if p.opts.StripMultiplayer {
		res.Achievements = steamdb.StripMultiplayer(res.Achievements)
	}
	if p.opts.CleanHiddenDescriptions {
		res.Achievements = steamdb.CleanHiddenDescriptions(res.Achievements)
	}

	err = p.tracker.SetTitle(ctx, appID, res.Title)
	if err != nil {
		out.Status = StatusErrored
		out.Err = err
		return out
	}
	g, _, err := p.tracker.Get(ctx, appID)
	if err == nil && tracker.Stage(g.Stage) == tracker.StageNew {
		err = p.tracker.Transition(ctx, appID, tracker.StageParsed)
	}
	if err != nil {
		out.Status = StatusErrored
		out.Err = err
		return out
	}

	if len(res.Achievements) == 0 && len(res.DLC) == 0 && !res.NoAchievementsMarker {
		out.Notice = "page yielded no achievements or DLC and lacks the no-achievements marker; the save may be incomplete"
		slog.WarnContext(ctx, "empty parse without marker", "app_id", appID)
		if err := p.tracker.SetNotice(ctx, appID, out.Notice); err != nil {
			out.Status = StatusErrored
			out.Err = err
			return out
		}
	}

	requests := make([]assets.Request, 0, len(res.Achievements)*2)
	fetchNeeded := false
	for _, a := range res.Achievements {
		requests = append(requests,
			assets.Request{ID: a.ApiName, URL: a.IconURL},
			assets.Request{ID: a.ApiName, URL: a.GrayIconURL},
		)
		if a.IconURL != "" || a.GrayIconURL != "" {
			fetchNeeded = true
		}
	}

	icons := map[string]assembler.Icon{}
	if fetchNeeded {
		err = p.tracker.Transition(ctx, appID, tracker.StageFetching)
		if err != nil {
			out.Status = StatusErrored
			out.Err = err
			return out
		}

		results := p.fetcher.FetchAll(ctx, requests, func(resolved, total int) {
			err := p.tracker.SetIconCounts(ctx, appID, int64(resolved), int64(total))
			if err != nil {
				slog.WarnContext(ctx, "failed to record icon counts",
					"app_id", appID, "err", err)
			}
		})
		failures := 0
		for i, a := range res.Achievements {
			icon := assembler.Icon{
				Source:     results[2*i].Path,
				GraySource: results[2*i+1].Path,
			}
			icons[a.ApiName] = icon
			if results[2*i].Err != nil {
				failures++
			}
			if results[2*i+1].Err != nil {
				failures++
			}
		}

		if err := ctx.Err(); err != nil {
			// interrupted mid-batch; the game stays at FETCHING and
			// the next run resumes from the cache
			out.Status = StatusIncomplete
			out.Err = err
			return out
		}
		if failures > 0 {
			out.Status = StatusIncomplete
			out.Err = fmt.Errorf("%w: %d of %d icons failed", ErrFetchIncomplete, failures, len(requests))
			out.Notice = fmt.Sprintf("%d icon fetches failed; rerun process to retry", failures)
			if nerr := p.tracker.SetNotice(ctx, appID, out.Notice); nerr != nil {
				slog.WarnContext(ctx, "failed to record notice",
					"app_id", appID, "err", nerr)
			}
			return out
		}
	}

	err = assembler.Assemble(ctx, assembler.Request{
		OutputRoot:   p.opts.OutputRoot,
		ExtrasDir:    p.opts.ExtrasDir,
		AppID:        appID,
		Achievements: res.Achievements,
		DLC:          res.DLC,
		Icons:        icons,
	})
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrWriteFailed, err)
		return p.quarantine(ctx, out, err.Error(), err)
	}

	err = p.tracker.Transition(ctx, appID, tracker.StageComplete)
	if err != nil {
		out.Status = StatusErrored
		out.Err = err
		return out
	}
	out.Status = StatusCompleted
	slog.InfoContext(ctx, "game processed",
		"app_id", appID, "title", res.Title,
		"achievements", len(res.Achievements), "dlc", len(res.DLC))
	return out
}

func (p *Pipeline) quarantine(ctx context.Context, out Outcome, reason string, cause error) Outcome {
	out.Status = StatusErrored
	out.Err = cause
	if err := p.tracker.Quarantine(ctx, out.AppID, reason); err != nil {
		slog.ErrorContext(ctx, "failed to quarantine game", "app_id", out.AppID, "err", err)
		return out
	}
	out.ErrorRecorded = true
	return out
}

func (p *Pipeline) errored(span trace.Span, out Outcome, err error) Outcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	out.Status = StatusErrored
	out.Err = err
	return out
}
