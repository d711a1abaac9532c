package mcpagent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tac/config"
)

func TestNewErrorsOnUnconfiguredServer(t *testing.T) {
	prev := config.Get()
	t.Cleanup(func() { config.Set(prev) })
	config.Set(&config.Config{})

	_, err := New("missing-server", "apply_change")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing-server")
}
