package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/storage"
)

func scopedCtx() context.Context {
	return context.WithValue(context.Background(), scopeKey{}, true)
}

func TestRelocate_OutsideScopeFails(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.Put("tmp/a.png", []byte("a"))
	r := NewRelocator(blobs)

	err := r.Relocate(context.Background(), "tmp/a.png", "p/e/s/a.png")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.Empty(t, r.Moves())
	require.False(t, blobs.Has("p/e/s/a.png"))
}

func TestRelocate_CopiesAndRecords(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.Put("tmp/a.png", []byte("a"))
	blobs.Put("tmp/b.png", []byte("b"))
	r := NewRelocator(blobs)
	ctx := scopedCtx()

	require.NoError(t, r.Relocate(ctx, "tmp/a.png", "p/e/s/a.png"))
	require.NoError(t, r.Relocate(ctx, "tmp/b.png", "p/e/s/b.png"))

	require.Equal(t, []Move{
		{OldKey: "tmp/a.png", NewKey: "p/e/s/a.png"},
		{OldKey: "tmp/b.png", NewKey: "p/e/s/b.png"},
	}, r.Moves())
	require.True(t, blobs.Has("p/e/s/a.png"))
	require.True(t, blobs.Has("tmp/a.png"), "staged original stays until finalize")
}

func TestRelocate_CopyFailureRecordsNothing(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.Put("tmp/a.png", []byte("a"))
	blobs.FailCopyTo("p/e/s/a.png")
	r := NewRelocator(blobs)

	err := r.Relocate(scopedCtx(), "tmp/a.png", "p/e/s/a.png")
	require.ErrorIs(t, err, ErrStorageFailure)
	require.Empty(t, r.Moves())
}

func TestFinalize_DeletesStagedOnly(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.Put("tmp/a.png", []byte("a"))
	blobs.Put("tmp/b.png", []byte("b"))
	r := NewRelocator(blobs)
	ctx := scopedCtx()

	require.NoError(t, r.Relocate(ctx, "tmp/a.png", "p/e/s/a.png"))
	require.NoError(t, r.Relocate(ctx, "tmp/b.png", "p/e/s/b.png"))
	r.Finalize(context.Background())

	require.False(t, blobs.Has("tmp/a.png"))
	require.False(t, blobs.Has("tmp/b.png"))
	require.True(t, blobs.Has("p/e/s/a.png"), "no orphan and no lost copy on success")
	require.True(t, blobs.Has("p/e/s/b.png"))
	require.Empty(t, r.Moves())
}

func TestFinalize_DeleteFailureIsNotFatal(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.Put("tmp/a.png", []byte("a"))
	blobs.FailDelete("tmp/a.png")
	r := NewRelocator(blobs)

	require.NoError(t, r.Relocate(scopedCtx(), "tmp/a.png", "p/e/s/a.png"))
	r.Finalize(context.Background())

	require.True(t, blobs.Has("p/e/s/a.png"))
}

// Second of two copies fails: compensation must remove exactly the first
// permanent copy and leave every staged original intact.
func TestCompensate_RemovesOnlyCompletedCopies(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.Put("tmp/a.png", []byte("a"))
	blobs.Put("tmp/b.png", []byte("b"))
	blobs.FailCopyTo("p/e/s/b.png")
	r := NewRelocator(blobs)
	ctx := scopedCtx()

	require.NoError(t, r.Relocate(ctx, "tmp/a.png", "p/e/s/a.png"))
	err := r.Relocate(ctx, "tmp/b.png", "p/e/s/b.png")
	require.ErrorIs(t, err, ErrStorageFailure)

	r.Compensate(context.Background())

	require.False(t, blobs.Has("p/e/s/a.png"))
	require.False(t, blobs.Has("p/e/s/b.png"))
	require.True(t, blobs.Has("tmp/a.png"))
	require.True(t, blobs.Has("tmp/b.png"))
	require.Empty(t, r.Moves())
}
