package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/config"
)

func withAuditConfig(t *testing.T, logPath string, enabled bool) {
	t.Helper()
	prev := config.Get()
	config.Set(&config.Config{Audit: config.AuditConfig{Enabled: enabled, LogPath: logPath}})
	t.Cleanup(func() { config.Set(prev) })
}

func TestLogInvocationNoopWhenDisabled(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	withAuditConfig(t, logPath, false)

	require.NoError(t, LogInvocation(Entry{BlockID: "b1"}))
	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err))
}

func TestLogInvocationThenReadAll(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	withAuditConfig(t, logPath, true)

	require.NoError(t, LogInvocation(Entry{BlockID: "b1", AgentName: "pytest", Success: true}))
	require.NoError(t, LogInvocation(Entry{BlockID: "b1", AgentName: "plausibility", Success: false}))

	entries, err := ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "pytest", entries[0].AgentName)
	assert.Equal(t, "plausibility", entries[1].AgentName)
}

func TestReadAllMissingFileReturnsNil(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "does-not-exist.log")
	withAuditConfig(t, logPath, true)

	entries, err := ReadAll()
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestReadAllSkipsMalformedLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	withAuditConfig(t, logPath, true)

	require.NoError(t, os.WriteFile(logPath, []byte("not json\n{\"block_id\":\"b1\"}\n"), 0o644))

	entries, err := ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b1", entries[0].BlockID)
}

func TestRecentReturnsLastN(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	withAuditConfig(t, logPath, true)

	for i := 0; i < 5; i++ {
		require.NoError(t, LogInvocation(Entry{BlockID: string(rune('a' + i))}))
	}

	recent, err := Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].BlockID)
	assert.Equal(t, "e", recent[1].BlockID)
}

func TestRecentReturnsAllWhenFewerThanN(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	withAuditConfig(t, logPath, true)

	require.NoError(t, LogInvocation(Entry{BlockID: "only"}))

	recent, err := Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
