package assets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ssg-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ssg.services.assets")

type FetcherOptions struct {
	// enforced minimum delay between consecutive outbound requests
	MinDelay time.Duration
	// attempts per URL before recording a failure
	Retries int
	Timeout time.Duration
	// overrides the resty client, used by tests to point at a local
	// transport
	Client *resty.Client
}

// Request is one icon to resolve for an achievement.
type Request struct {
	// achievement the icon belongs to
	ID  string
	URL string
}

// Result reports the outcome per request; Path is empty iff Err is
// set.
type Result struct {
	ID        string
	URL       string
	Path      string
	FromCache bool
	Err       error
}

// Fetcher resolves icon URLs through the cache, fetching only misses.
// Fetches are issued strictly sequentially with a fixed pacing delay
// to stay under the remote's rate limits; parallelism here would just
// get the whole batch throttled.
type Fetcher struct {
	cache  Cache
	client *resty.Client
	opts   FetcherOptions

	lastRequest time.Time
}

func NewFetcher(cache Cache, opts FetcherOptions) *Fetcher {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 15
	}
	client := opts.Client
	if client == nil {
		client = resty.New()
	}
	client.SetTimeout(opts.Timeout)
	telemetry.InstrumentResty(client, "ssg.services.assets:resty")

	return &Fetcher{
		cache:  cache,
		client: client,
		opts:   opts,
	}
}

func (f *Fetcher) Cache() Cache {
	return f.cache
}

// FetchAll resolves every request, deduplicating by URL. onProgress is
// called after every resolution attempt with (resolved, total) counted
// over unique URLs, which is what makes interrupted batches resumable.
// Cancellation takes effect between attempts: the in-flight request
// finishes or times out, then the remaining requests are returned with
// the context error.
func (f *Fetcher) FetchAll(ctx context.Context, requests []Request, onProgress func(resolved, total int)) []Result {
	ctx, span := tracer.Start(ctx, "FetchAll")
	defer span.End()

	unique := []string{}
	seen := map[string]bool{}
	for _, req := range requests {
		if req.URL == "" || seen[req.URL] {
			continue
		}
		seen[req.URL] = true
		unique = append(unique, req.URL)
	}
	span.SetAttributes(
		attribute.Int("requests", len(requests)),
		attribute.Int("unique_urls", len(unique)),
	)

	resolved := map[string]Result{}
	done := 0
	report := func() {
		if onProgress != nil {
			onProgress(done, len(unique))
		}
	}
	report()

	for _, u := range unique {
		if p, ok := f.cache.Resolve(u); ok {
			resolved[u] = Result{URL: u, Path: p, FromCache: true}
			done++
			report()
			continue
		}

		if err := ctx.Err(); err != nil {
			resolved[u] = Result{URL: u, Err: err}
			report()
			continue
		}

		p, err := f.fetchOne(ctx, u)
		if err != nil {
			slog.WarnContext(ctx, "icon fetch failed", "url", u, "err", err)
			resolved[u] = Result{URL: u, Err: err}
		} else {
			resolved[u] = Result{URL: u, Path: p}
			done++
		}
		report()
	}

	out := make([]Result, len(requests))
	for i, req := range requests {
		if req.URL == "" {
			out[i] = Result{ID: req.ID}
			continue
		}
		r := resolved[req.URL]
		r.ID = req.ID
		out[i] = r
	}
	return out
}

// fetchOne downloads a single URL with pacing and bounded retries.
func (f *Fetcher) fetchOne(ctx context.Context, u string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetchOne")
	defer span.End()
	span.SetAttributes(attribute.String("url", u))

	var lastErr error
	for attempt := 0; attempt < f.opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := f.pace(ctx)
		if err != nil {
			return "", err
		}

		// user stop takes effect between attempts: the in-flight
		// request is allowed to complete or hit its own timeout
		res, err := f.client.R().
			SetContext(context.WithoutCancel(ctx)).
			Get(u)
		f.lastRequest = time.Now()

		if err != nil {
			lastErr = err
			continue
		}
		if res.IsError() {
			lastErr = fmt.Errorf("unexpected status %s", res.Status())
			continue
		}
		if len(res.Body()) == 0 {
			lastErr = fmt.Errorf("empty response body")
			continue
		}

		return f.cache.Put(u, res.Body())
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "fetch failed after retries")
	return "", fmt.Errorf("fetch %s: %w", u, lastErr)
}

// pace blocks until the minimum inter-request delay has elapsed since
// the previous outbound request.
func (f *Fetcher) pace(ctx context.Context) error {
	if f.lastRequest.IsZero() || f.opts.MinDelay <= 0 {
		return nil
	}
	wait := f.opts.MinDelay - time.Since(f.lastRequest)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
