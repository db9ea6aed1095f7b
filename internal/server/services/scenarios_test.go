package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLifecycle walks one user through upload, folder membership, a share
// link and a detaching folder delete.
func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	clock := withClock(h)

	u, err := h.users.Register(ctx, "alice", "password1")
	require.NoError(t, err)
	u2, err := h.users.Register(ctx, "bob", "password2")
	require.NoError(t, err)

	report, err := h.upload.Upload(ctx, &UploadRequest{
		File:     bytes.NewReader(make([]byte, 2048)),
		FileName: "report.pdf",
	}, u.ID)
	require.NoError(t, err)
	assert.Nil(t, report.FolderID)
	assert.Equal(t, int64(2048), report.Size)
	assert.Regexp(t, uuidPDFKey, report.StorageKey)

	taxes, err := h.folders.Create(ctx, "Taxes", u.ID)
	require.NoError(t, err)

	view, err := h.folders.UpdateMembership(ctx, taxes.ID, []int64{report.ID}, nil, u.ID)
	require.NoError(t, err)
	require.Len(t, view.Files, 1)
	assert.Equal(t, report.ID, view.Files[0].ID)

	_, err = h.folders.UpdateMembership(ctx, taxes.ID, []int64{report.ID}, nil, u2.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	share, err := h.shares.Issue(ctx, taxes.ID, u.ID, 1)
	require.NoError(t, err)

	shared, err := h.shares.Resolve(ctx, share.Token)
	require.NoError(t, err)
	require.Len(t, shared.Files, 1)
	assert.Equal(t, report.ID, shared.Files[0].ID)

	clock.Set(clock.Now().Add(48 * time.Hour))
	_, err = h.shares.Resolve(ctx, share.Token)
	assert.ErrorIs(t, err, common.ErrExpired)

	require.NoError(t, h.folders.Delete(ctx, taxes.ID, u.ID, DeleteDetach))

	f, err := h.files.Get(ctx, report.ID, u.ID)
	require.NoError(t, err)
	assert.Nil(t, f.FolderID)

	_, err = h.folders.Get(ctx, taxes.ID, u.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, h.files.Delete(ctx, report.ID, u.ID))
	_, err = h.engine.Stat(ctx, report.StorageKey)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
