package config

import "time"

// Config is the process-wide immutable configuration snapshot every kernel
// package consumes. It is a plain struct: the kernel never imports viper or
// cobra, those live only in cmd/tac's flag/env/file precedence layer that
// produces this struct.
type Config struct {
	General GeneralConfig        `yaml:"general"`
	Git     GitConfig            `yaml:"git"`
	LLMs    map[string]LLMConfig `yaml:"llms"`
	Audit   AuditConfig          `yaml:"audit"`
	Persist PersistConfig        `yaml:"persist"`
	MCP     MCPConfig            `yaml:"mcp"`
	Vision  VisionConfig         `yaml:"vision"`
}

// GeneralConfig holds the top-level harness knobs named in spec.md §6.
type GeneralConfig struct {
	CodingAgent         string   `yaml:"coding_agent"`           // "subprocess" | "mcp"
	DefaultTrustyAgents []string `yaml:"default_trusty_agents"`  // always augmented with pytest+plausibility
	UseFileSummaries    bool     `yaml:"use_file_summaries"`

	MaxRetriesBlockCreation      int `yaml:"max_retries_block_creation"`
	MaxRetriesProtoblockCreation int `yaml:"max_retries_protoblock_creation"`

	HaltAfterFail              bool `yaml:"halt_after_fail"`
	HaltAfterVerify            bool `yaml:"halt_after_verify"`
	ConfirmMultiblockExecution bool `yaml:"confirm_multiblock_execution"`

	RunErrorAnalysis bool `yaml:"run_error_analysis"`

	TestPath        string `yaml:"test_path"`
	TestFilePattern string `yaml:"test_file_pattern"` // e.g. "*_test.go"

	TrustyAgents TrustyAgentsConfig `yaml:"trusty_agents"`

	VisionTimeout          time.Duration `yaml:"vision_timeout"`
	VisionScreenshotDelay  time.Duration `yaml:"vision_screenshot_delay"`

	CodingAgentBinary        string        `yaml:"coding_agent_binary"`
	CodingAgentTotalTimeout  time.Duration `yaml:"coding_agent_total_timeout"`
}

// TrustyAgentsConfig groups per-agent toggles named in spec.md §6.
type TrustyAgentsConfig struct {
	ExcludePerformanceTests bool `yaml:"exclude_performance_tests"`
}

// GitConfig controls which SourceTree backend is used and its VCS behavior.
type GitConfig struct {
	Enabled            bool `yaml:"enabled"`
	AutoCommitIfSuccess bool `yaml:"auto_commit_if_success"`
	AutoPushIfSuccess   bool `yaml:"auto_push_if_success"`
	UseWorktree         bool `yaml:"use_worktree"`
}

// LLMConfig configures one capability tier (strong / weak / vision).
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	KeepAlive   bool          `yaml:"keep_alive"`
	IdleTimeout int           `yaml:"idle_timeout"` // seconds
}

// AuditConfig controls the JSONL audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// PersistConfig controls where ProtoBlock JSON, run logs, and the derived
// SQLite index live.
type PersistConfig struct {
	ProtoBlockDir string `yaml:"protoblock_dir"`
	RunLogDir     string `yaml:"run_log_dir"`
	SQLiteIndex   string `yaml:"sqlite_index"` // not read by the kernel or cmd/tac; no index is opened from it
}

// MCPConfig configures MCP servers reachable as a CodingAgent realization,
// and whether this process exposes its own trust agents as MCP tools.
type MCPConfig struct {
	Enabled     bool                    `yaml:"enabled"`
	BridgeName  string                  `yaml:"bridge_name"`
	Servers     map[string]MCPServerConfig `yaml:"servers"`
}

type MCPServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env,omitempty"`
	Enabled bool              `yaml:"enabled"`
}

// VisionConfig configures the HTML-readiness probe used before handing off
// to the (out of scope) screenshot launcher.
type VisionConfig struct {
	ReadinessMarker string `yaml:"readiness_marker"` // CSS selector, e.g. "#app-ready"
	ReadinessProbeTimeout time.Duration `yaml:"readiness_probe_timeout"`
}
