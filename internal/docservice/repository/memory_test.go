package repository

import (
	"context"
	"testing"
	"time"

	"github.com/gogotex/pdf-annotator/internal/docservice"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoCRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	t0 := time.Now()
	require.NoError(t, r.Create(ctx, &docservice.Upload{FilePath: "uploads/b.pdf", Name: "b.pdf", CreatedAt: t0.Add(time.Second)}))
	u := &docservice.Upload{FilePath: "uploads/a.pdf", Name: "a.pdf", Pages: 2, CreatedAt: t0}
	require.NoError(t, r.Create(ctx, u))

	got, err := r.Get(ctx, "uploads/a.pdf")
	require.NoError(t, err)
	require.Equal(t, 2, got.Pages)
	got.Pages = 9
	again, err := r.Get(ctx, "uploads/a.pdf")
	require.NoError(t, err)
	require.Equal(t, 2, again.Pages)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a.pdf", list[0].Name)

	require.NoError(t, r.Delete(ctx, "uploads/a.pdf"))
	_, err = r.Get(ctx, "uploads/a.pdf")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, "uploads/a.pdf"), ErrNotFound)
}
