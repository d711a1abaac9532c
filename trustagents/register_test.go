package trustagents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/core/registry"
	"tac/trustagents/performance"
	"tac/trustagents/plausibility"
	"tac/trustagents/testrunner"
	"tac/trustagents/vision"
	"tac/trustagents/visiondiff"
)

func TestRegisterDefaultsRegistersEveryAgent(t *testing.T) {
	r := registry.New()
	RegisterDefaults(r)

	names := r.Names()
	assert.Contains(t, names, testrunner.AgentName)
	assert.Contains(t, names, plausibility.AgentName)
	assert.Contains(t, names, vision.AgentName)
	assert.Contains(t, names, visiondiff.AgentName)
	assert.Contains(t, names, performance.AgentName)
}

func TestRegisterDefaultsMarksOnlyPytestAndPlausibilityMandatory(t *testing.T) {
	r := registry.New()
	RegisterDefaults(r)

	mandatory := r.MandatoryNames()
	assert.Contains(t, mandatory, testrunner.AgentName)
	assert.Contains(t, mandatory, plausibility.AgentName)
	assert.NotContains(t, mandatory, vision.AgentName)
	assert.NotContains(t, mandatory, visiondiff.AgentName)
	assert.NotContains(t, mandatory, performance.AgentName)
}

func TestRegisterDefaultsAgentsResolve(t *testing.T) {
	r := registry.New()
	RegisterDefaults(r)

	for _, name := range []string{testrunner.AgentName, plausibility.AgentName, vision.AgentName, visiondiff.AgentName, performance.AgentName} {
		agent, err := r.Resolve(name)
		require.NoError(t, err)
		assert.NotNil(t, agent)
	}
}
