package tracker

import (
	"context"
	"testing"
	"time"

	"ssg-backend/lib/testutil"
	"ssg-backend/services/tracker/db"

	"github.com/stretchr/testify/require"
)

func setupTracker(t *testing.T) (Service, func()) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/tracker",
		DbSchema: db.Schema,
	})
	service, err := NewService(setup.DB, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return service, cleanup
}

func TestLifecycle(t *testing.T) {
	service, cleanup := setupTracker(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, found, err := service.Get(ctx, "12345")
	require.NoError(t, err)
	require.False(t, found)

	raw := []byte("<html>page</html>")
	g, err := service.Begin(ctx, "12345", "Example Game", "fp-1", raw)
	require.NoError(t, err)
	require.Equal(t, StageNew, Stage(g.Stage))
	require.Equal(t, "Example Game", g.Title)

	stored, err := service.ReadStoredPage(ctx, "12345")
	require.NoError(t, err)
	require.Equal(t, raw, stored)

	require.NoError(t, service.Transition(ctx, "12345", StageParsed))
	require.NoError(t, service.Transition(ctx, "12345", StageFetching))
	require.NoError(t, service.SetIconCounts(ctx, "12345", 2, 4))
	require.NoError(t, service.Transition(ctx, "12345", StageComplete))

	g, found, err = service.Get(ctx, "12345")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, StageComplete, Stage(g.Stage))
	require.Equal(t, int64(2), g.IconsFetched)
	require.Equal(t, int64(4), g.IconsTotal)
}

func TestInvalidTransitionRejected(t *testing.T) {
	service, cleanup := setupTracker(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.Begin(ctx, "1", "Game", "fp", []byte("x"))
	require.NoError(t, err)

	// NEW cannot jump straight to COMPLETE
	require.Error(t, service.Transition(ctx, "1", StageComplete))
	// but any stage may fail
	require.NoError(t, service.Transition(ctx, "1", StageError))
}

func TestReprocessTransition(t *testing.T) {
	service, cleanup := setupTracker(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.Begin(ctx, "2", "Game", "fp", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, service.Transition(ctx, "2", StageParsed))
	require.NoError(t, service.Transition(ctx, "2", StageComplete))

	// reprocess re-opens a completed game
	require.NoError(t, service.Transition(ctx, "2", StageParsed))

	g, _, err := service.Get(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, StageParsed, Stage(g.Stage))
}

func TestDuplicateDetection(t *testing.T) {
	service, cleanup := setupTracker(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.Begin(ctx, "3", "Game", "fp-same", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, service.Transition(ctx, "3", StageParsed))
	require.NoError(t, service.Transition(ctx, "3", StageComplete))

	g, _, err := service.Get(ctx, "3")
	require.NoError(t, err)
	require.True(t, IsDuplicate(g, "fp-same"))
	require.False(t, IsDuplicate(g, "fp-other"))
}

func TestQuarantineAndDelete(t *testing.T) {
	service, cleanup := setupTracker(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.Begin(ctx, "4", "Game", "fp", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, service.Quarantine(ctx, "4", "disk full"))

	g, _, err := service.Get(ctx, "4")
	require.NoError(t, err)
	require.Equal(t, StageError, Stage(g.Stage))
	require.Equal(t, "disk full", g.LastError)

	require.NoError(t, service.Delete(ctx, "4"))
	_, found, err := service.Get(ctx, "4")
	require.NoError(t, err)
	require.False(t, found)

	_, err = service.ReadStoredPage(ctx, "4")
	require.Error(t, err)
}

func TestBeginResetsErrorState(t *testing.T) {
	service, cleanup := setupTracker(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.Begin(ctx, "5", "Game", "fp-1", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, service.Quarantine(ctx, "5", "broken"))

	g, err := service.Begin(ctx, "5", "Game", "fp-2", []byte("y"))
	require.NoError(t, err)
	require.Equal(t, StageNew, Stage(g.Stage))
	require.Empty(t, g.LastError)
	require.Equal(t, "fp-2", g.Fingerprint)
}
