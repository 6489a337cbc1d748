package runs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/taskpad/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db.Gorm())
}

func TestStore_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{RunID: "r1", ProjectID: "p1", ScratchpadID: "sp1", TaskID: "t1", UserID: "u1", Provider: "openai"}
	require.NoError(t, s.Create(ctx, run))
	assert.Equal(t, StatusPending, run.Status)

	got, err := s.Get(ctx, "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, []string{}, got.Tools)

	require.NoError(t, s.MarkInProgress(ctx, "r1"))
	got, err = s.Get(ctx, "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.NotEmpty(t, got.StartedAt)

	written, err := s.Finish(ctx, "r1", StatusSuccess, "", "done")
	require.NoError(t, err)
	assert.True(t, written)

	got, err = s.Get(ctx, "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "done", got.OutputPreview)
	assert.NotEmpty(t, got.FinishedAt)
}

func TestStore_TerminalIsFinal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &Run{RunID: "r1", ProjectID: "p1", Tools: []string{"web_search"}}))

	written, err := s.Finish(ctx, "r1", StatusFailure, "provider_unavailable:x", "")
	require.NoError(t, err)
	require.True(t, written)

	written, err = s.Finish(ctx, "r1", StatusSuccess, "", "late")
	require.NoError(t, err)
	assert.False(t, written, "terminal rows are not rewritten")

	require.NoError(t, s.MarkInProgress(ctx, "r1"))

	got, err := s.Get(ctx, "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, got.Status)
	assert.Equal(t, "provider_unavailable:x", got.Error)
	assert.Equal(t, []string{"web_search"}, got.Tools)
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "p1", "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
