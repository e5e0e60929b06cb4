package commands

import (
	"testing"

	"ssg-backend/services/pipeline"

	"github.com/stretchr/testify/require"
)

func TestOutcomeFailed(t *testing.T) {
	require.False(t, outcomeFailed(pipeline.Outcome{Status: pipeline.StatusCompleted}))
	require.False(t, outcomeFailed(pipeline.Outcome{Status: pipeline.StatusSkipped}))

	// stuck in FETCHING, did not reach COMPLETE
	require.True(t, outcomeFailed(pipeline.Outcome{Status: pipeline.StatusIncomplete}))

	// internal fault where not even the quarantine write landed
	require.True(t, outcomeFailed(pipeline.Outcome{Status: pipeline.StatusErrored}))

	// per-game failure recorded as ERROR on the state row
	require.False(t, outcomeFailed(pipeline.Outcome{
		Status:        pipeline.StatusErrored,
		ErrorRecorded: true,
	}))
}
