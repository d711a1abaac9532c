// Package cmd wires the tac binary's cobra command tree to the kernel
// packages built under this module. Grounded on
// hugo-lorenzo-mato-quorum-ai/cmd/quorum/cmd/root.go's cobra+viper
// bootstrap shape (PersistentPreRunE calling a shared initConfig, flags
// bound into viper, QUORUM_-style env prefix), adapted to this kernel's
// own config.Config shape and adding a fsnotify-driven config reload the
// teacher's root.go doesn't: viper.WatchConfig's underlying watcher is
// fsnotify itself (already a direct dependency here), and on change we
// re-unmarshal into config.Config and invalidate the registry's cached
// agent prompts so a changed default_trusty_agents list takes effect on
// the next block without a restart.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tac/config"
	"tac/core/registry"
	"tac/llm"
	"tac/trustagents"
)

var (
	cfgFile string
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "tac",
	Short: "Trusted Autonomous Coder: a ProtoBlock-driven coding harness kernel",
	Long: `tac drives an LLM-generated ProtoBlock through a coding agent and a
panel of trust agents, retrying and recovering on failure, and optionally
decomposing large tasks into an ordered sequence of smaller recipes.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return initialize() },
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./tac.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root to operate on")

	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
}

// initialize has viper locate the config file (--config, else ./tac.yaml),
// loads it into config through config.Load (environment variables are not
// applied to the snapshot), and wires the two process-wide singletons
// every subcommand depends on:
// registry.Default (trust agents) and llm.Default (LLM manager).
func initialize() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tac")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("TAC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	readErr := viper.ReadInConfig()
	if readErr != nil {
		if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", readErr)
		}
	}

	// viper only resolves which config file wins (the --config flag, else
	// the search path); config.Load does the actual YAML decode, since it
	// already knows this package's snake_case yaml tags and
	// config.applyDefaults, neither of which viper.Unmarshal's
	// mapstructure-based decoding would honor without duplicating every
	// tag a second time.
	if err := reloadConfig(readErr == nil); err != nil {
		return err
	}

	viper.OnConfigChange(func(_ fsnotify.Event) {
		if err := reloadConfig(true); err != nil {
			fmt.Fprintf(os.Stderr, "tac: failed to reload config: %v\n", err)
			return
		}
		registry.InvalidatePromptCache()
		wireLLMManager(config.Get())
	})
	viper.WatchConfig()

	trustagents.RegisterDefaults(registry.Default)
	wireLLMManager(config.Get())

	return nil
}

// reloadConfig loads tac.yaml (or --config) through config.Load when a
// file was actually found, falling back to config's own defaulted
// snapshot otherwise.
func reloadConfig(fileFound bool) error {
	if !fileFound {
		config.Set(&config.Config{})
		return nil
	}
	if _, err := config.Load(viper.ConfigFileUsed()); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func wireLLMManager(cfg *config.Config) {
	mgr := llm.NewManager()
	for name, llmCfg := range cfg.LLMs {
		var purpose llm.Purpose
		switch name {
		case "strong":
			purpose = llm.PurposeStrong
		case "weak":
			purpose = llm.PurposeWeak
		case "vision":
			purpose = llm.PurposeVision
		default:
			fmt.Fprintf(os.Stderr, "tac: unknown llm purpose %q in config, skipping\n", name)
			continue
		}
		clientCfg := llm.Config{
			Provider:    llmCfg.Provider,
			Model:       llmCfg.Model,
			Temperature: llmCfg.Temperature,
			MaxTokens:   llmCfg.MaxTokens,
			BaseURL:     llmCfg.BaseURL,
			APIKey:      llmCfg.APIKey,
		}
		if err := mgr.RegisterLLM(purpose, clientCfg); err != nil {
			fmt.Fprintf(os.Stderr, "tac: failed to register %s llm: %v\n", name, err)
		}
	}
	llm.Default = mgr
}
