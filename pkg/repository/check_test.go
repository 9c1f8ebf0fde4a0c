// Copyright © 2018 One Concern

package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)

	problems, err := tr.Check(ctx, VerifyArchives(2))
	require.NoError(t, err)
	assert.Empty(t, problems)

	foo, err := tr.Add(ctx, tr.archive(t, "Foo-1.0.tar.gz", "foo"), "")
	require.NoError(t, err)
	bar, err := tr.Add(ctx, tr.archive(t, "Bar-1.0.tar.gz", "bar"), "")
	require.NoError(t, err)
	pending := partialAdd(t, tr, "Baz-1.0.tar.gz", "baz")

	// an archive nobody recorded
	require.NoError(t, tr.archives.Put(ctx, model.ArchiveKey("J/JE/JEFF/Orphan-1.0.tar.gz"), strings.NewReader("orphan"), true))
	// an archive which vanished
	require.NoError(t, os.Remove(filepath.Join(tr.Root(), model.ArchiveKey(bar.Path))))
	// an archive altered behind our back
	require.NoError(t, os.WriteFile(filepath.Join(tr.Root(), model.ArchiveKey(foo.Path)), []byte("tampered"), 0600))

	problems, err = tr.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Problem{
		{Kind: MissingArchive, Path: bar.Path},
		{Kind: PendingRecovery, Path: pending.Path},
		{Kind: OrphanArchive, Path: "J/JE/JEFF/Orphan-1.0.tar.gz"},
	}, problems)

	problems, err = tr.Check(ctx, VerifyArchives(0))
	require.NoError(t, err)
	require.Len(t, problems, 4)
	assert.Equal(t, AlteredArchive, problems[2].Kind)
	assert.Equal(t, foo.Path, problems[2].Path)
	assert.Error(t, problems[2].Err)
}
