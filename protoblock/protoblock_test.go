package protoblock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/core/types"
)

func TestLoadMissingReturnsEmptyFile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	f, err := s.Load("b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", f.BlockID)
	assert.Empty(t, f.Versions)
}

func TestAppendVersionThenLoad(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.AppendVersion(&types.ProtoBlock{BlockID: "b1", TaskDescription: "v1"}))
	require.NoError(t, s.AppendVersion(&types.ProtoBlock{BlockID: "b1", TaskDescription: "v2"}))

	f, err := s.Load("b1")
	require.NoError(t, err)
	require.Len(t, f.Versions, 2)
	assert.Equal(t, "v1", f.Versions[0].TaskDescription)
	assert.Equal(t, "v2", f.Versions[1].TaskDescription)
}

func TestLoadLegacySingleVersionFormat(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	legacy := types.ProtoBlock{BlockID: "b1", TaskDescription: "legacy"}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b1.json"), data, 0o644))

	f, err := s.Load("b1")
	require.NoError(t, err)
	require.Len(t, f.Versions, 1)
	assert.Equal(t, "legacy", f.Versions[0].TaskDescription)
}

func TestLatestReturnsMostRecentByTimestamp(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.AppendVersion(&types.ProtoBlock{BlockID: "b1", TaskDescription: "older"}))
	require.NoError(t, s.AppendVersion(&types.ProtoBlock{BlockID: "b1", TaskDescription: "newer"}))

	latest, err := s.Latest("b1")
	require.NoError(t, err)
	assert.Equal(t, "newer", latest.TaskDescription)
}

func TestLatestErrorsWhenNoVersions(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Latest("missing")
	assert.Error(t, err)
}

func TestListSortedBlockIDs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.AppendVersion(&types.ProtoBlock{BlockID: "zeta"}))
	require.NoError(t, s.AppendVersion(&types.ProtoBlock{BlockID: "alpha"}))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}
