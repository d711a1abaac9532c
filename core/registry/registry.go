// Package registry is the process-wide TrustAgent registry: a declarative
// map of name -> (constructor, metadata) populated once at startup and
// treated as read-only thereafter (spec's "no implicit decorator magic" —
// population happens via an explicit RegisterDefaults call from main, never
// via package init()).
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tac/core/types"
)

// Constructor builds a fresh TrustAgent instance. Agents are constructed
// per-ProtoBlock (not shared) so stateful comparative agents (vision-diff)
// never leak state between blocks.
type Constructor func() types.TrustAgent

type entry struct {
	ctor Constructor
	desc types.AgentDescription
}

// Registry is a name -> (constructor, metadata) map guarded by a RWMutex,
// mirroring the teacher's global tool registry shape.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty registry. Most callers use the process-wide Default.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Default is the process-wide registry instance used by trustagents.RegisterDefaults
// and by every component (Planner, Executor) that resolves agents by name.
var Default = New()

// Register adds an agent under desc.Name. Registering the same name twice
// is a no-op: the first registration wins (invariant 9 — idempotent,
// never two active entries).
func (r *Registry) Register(desc types.AgentDescription, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.Name]; exists {
		return
	}
	r.entries[desc.Name] = entry{ctor: ctor, desc: desc}
}

// Resolve constructs a fresh TrustAgent for name. Returns an error if name
// is not registered — the Planner validates trusty_agents at creation time
// so the Executor never has to handle this case for a well-formed ProtoBlock.
func (r *Registry) Resolve(name string) (types.TrustAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("trust agent %q is not registered", name)
	}
	return e.ctor(), nil
}

// Has reports whether name is registered, used by Planner validation.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Names returns all registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MandatoryNames returns the names of all agents registered as mandatory
// (always pytest + plausibility per spec, but driven off the registry so a
// future mandatory agent needs only a registration change).
func (r *Registry) MandatoryNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0)
	for name, e := range r.entries {
		if e.desc.Mandatory {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Descriptions returns every registered agent's declarative metadata,
// sorted by name, for the Planner to describe available agents to the LLM.
func (r *Registry) Descriptions() []types.AgentDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]types.AgentDescription, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Cached prompt text, regenerated only after InvalidatePromptCache clears it
// (Register does not clear it) — mirrors the teacher's double-checked-locking
// prompt cache.
var (
	cachedAgentPrompts string
	promptsGenerated   bool
	promptMu           sync.RWMutex
)

// GenerateAgentPrompts concatenates each registered agent's protoblock_prompt
// for inclusion in the Planner's prompt.
func (r *Registry) GenerateAgentPrompts() string {
	promptMu.RLock()
	if promptsGenerated {
		defer promptMu.RUnlock()
		return cachedAgentPrompts
	}
	promptMu.RUnlock()

	promptMu.Lock()
	defer promptMu.Unlock()

	if promptsGenerated {
		return cachedAgentPrompts
	}

	var b strings.Builder
	for _, desc := range r.Descriptions() {
		if desc.ProtoblockPrompt == "" {
			continue
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", desc.Name, desc.ProtoblockPrompt)
	}

	cachedAgentPrompts = b.String()
	promptsGenerated = true
	return cachedAgentPrompts
}

// GenerateSectionsForOutputFormat produces the agent-list section of the
// Planner's structured-output instructions: name, description, and whether
// it is always included.
func (r *Registry) GenerateSectionsForOutputFormat() string {
	var b strings.Builder
	b.WriteString("Available trust agents:\n")
	for _, desc := range r.Descriptions() {
		mandatory := ""
		if desc.Mandatory {
			mandatory = " (always included)"
		}
		fmt.Fprintf(&b, "- %s%s: %s\n", desc.Name, mandatory, desc.Description)
	}
	return b.String()
}

// GetDescriptions is an alias kept for symmetry with the spec's §4.2 naming
// (generate_sections_for_output_format / get_descriptions).
func (r *Registry) GetDescriptions() []types.AgentDescription {
	return r.Descriptions()
}

// InvalidatePromptCache must be called after any Register call made past
// process startup (tests register ad hoc agents); production code registers
// everything once via RegisterDefaults before the cache is ever read.
func InvalidatePromptCache() {
	promptMu.Lock()
	defer promptMu.Unlock()
	cachedAgentPrompts = ""
	promptsGenerated = false
}
