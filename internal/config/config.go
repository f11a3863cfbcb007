// Package config resolves recall configuration. Precedence, highest to
// lowest: environment variables (CLAUDE_RECALL_*), project config
// (.claude-recall/config.yaml or config.json), base config
// (~/.claude-recall/config.yaml or config.json), defaults. The base root is
// relocatable via CLAUDE_RECALL_BASE. JSON config files parse through the
// YAML decoder, so both formats share one loader.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirName is the per-project data directory.
const DirName = ".claude-recall"

// Markdown store file names.
const (
	LessonsFile       = "LESSONS.md"
	HandoffsFile      = "HANDOFFS.md"
	HandoffsLocalFile = "HANDOFFS_LOCAL.md"
)

// Config holds all recall configuration.
type Config struct {
	// Enabled gates every mutating command; when false they exit 0 with no
	// effect. Nil in a config file means "not set".
	Enabled *bool `yaml:"enabled" json:"enabled"`

	// StateDir is the machine-level state directory (system lessons, offsets,
	// caches). Default: CLAUDE_RECALL_BASE, else ~/.claude-recall.
	StateDir string `yaml:"state_dir" json:"state_dir"`

	// ProjectDir is the project root. Empty means auto-detect: the host's
	// CLAUDE_PROJECT_DIR, else the nearest ancestor with .git, else cwd.
	ProjectDir string `yaml:"project_dir" json:"project_dir"`

	// DebugLevel is 0 (off) to 3 (trace) for the state-dir event log.
	DebugLevel int `yaml:"debug_level" json:"debug_level"`

	// SessionID overrides the host-provided session id (testing hooks).
	SessionID string `yaml:"session_id" json:"session_id"`

	Inject    InjectConfig    `yaml:"inject" json:"inject"`
	Relevance RelevanceConfig `yaml:"relevance" json:"relevance"`
	Lessons   LessonsConfig   `yaml:"lessons" json:"lessons"`
	Summarize SummarizeConfig `yaml:"summarize" json:"summarize"`
}

// InjectConfig holds context injection settings.
type InjectConfig struct {
	// TopN is how many lessons session-start injects.
	TopN int `yaml:"top_n" json:"top_n"`

	// BudgetWarnTokens is the estimated-token threshold for the over-budget
	// warning and lesson reduction.
	BudgetWarnTokens int `yaml:"budget_warn_tokens" json:"budget_warn_tokens"`

	// ThemeBuckets are the keyword buckets used when compacting long
	// tried-step histories. The last bucket is the catch-all.
	ThemeBuckets []string `yaml:"theme_buckets" json:"theme_buckets"`
}

// RelevanceConfig holds ranking settings.
type RelevanceConfig struct {
	// Ranker selects the scorer: "local" (BM25), "claude", or "openai".
	Ranker string `yaml:"ranker" json:"ranker"`

	// JaccardThreshold is the query-token overlap at which a cached scoring
	// is reused.
	JaccardThreshold float64 `yaml:"jaccard_threshold" json:"jaccard_threshold"`

	// TimeoutSecs bounds one external scoring call.
	TimeoutSecs int `yaml:"timeout_secs" json:"timeout_secs"`
}

// LessonsConfig holds lesson store settings.
type LessonsConfig struct {
	// StaleDays is the last-used age after which a lesson counts as stale.
	StaleDays int `yaml:"stale_days" json:"stale_days"`
}

// SummarizeConfig holds context extraction settings.
type SummarizeConfig struct {
	// Provider selects the summarizer: "claude" (CLI subprocess), "openai",
	// or "none".
	Provider string `yaml:"provider" json:"provider"`

	// Command is the CLI binary used by the claude provider.
	Command string `yaml:"command" json:"command"`

	// Model is the model name for the openai provider.
	Model string `yaml:"model" json:"model"`
}

// baseDir is the machine-level root for state and the base config file:
// CLAUDE_RECALL_BASE when set, else ~/.claude-recall.
func baseDir() string {
	if v := os.Getenv("CLAUDE_RECALL_BASE"); v != "" {
		return v
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, DirName)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateDir: baseDir(),
		Inject: InjectConfig{
			TopN:             5,
			BudgetWarnTokens: 2000,
			ThemeBuckets:     []string{"guard", "plugin", "ui", "fix", "refactor", "test", "other"},
		},
		Relevance: RelevanceConfig{
			Ranker:           "local",
			JaccardThreshold: 0.8,
			TimeoutSecs:      30,
		},
		Lessons: LessonsConfig{
			StaleDays: 60,
		},
		Summarize: SummarizeConfig{
			Provider: "claude",
			Command:  "claude",
			Model:    "gpt-4o-mini",
		},
	}
}

// Load resolves configuration with proper precedence.
// Priority: env > project > base > defaults.
func Load(cwd string) (*Config, error) {
	cfg := Default()

	if baseConfig, err := loadFromDir(baseDir()); err == nil && baseConfig != nil {
		cfg = merge(cfg, baseConfig)
	}

	if cfg.ProjectDir == "" {
		cfg.ProjectDir = detectProjectDir(cwd)
	}
	if projectConfig, err := loadFromDir(filepath.Join(cfg.ProjectDir, DirName)); err == nil && projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = detectProjectDir(cwd)
	}
	return cfg, nil
}

// IsEnabled reports the resolved enabled flag; unset means enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RecallDir is the project data directory.
func (c *Config) RecallDir() string {
	return filepath.Join(c.ProjectDir, DirName)
}

// ProjectLessonsPath is the project-tier lessons file.
func (c *Config) ProjectLessonsPath() string {
	return filepath.Join(c.RecallDir(), LessonsFile)
}

// SystemLessonsPath is the system-tier lessons file.
func (c *Config) SystemLessonsPath() string {
	return filepath.Join(c.StateDir, LessonsFile)
}

// SharedHandoffsPath is the committed handoffs file.
func (c *Config) SharedHandoffsPath() string {
	return filepath.Join(c.RecallDir(), HandoffsFile)
}

// StealthHandoffsPath is the local-only handoffs file.
func (c *Config) StealthHandoffsPath() string {
	return filepath.Join(c.RecallDir(), HandoffsLocalFile)
}

// detectProjectDir walks up from cwd looking for a .git entry; falls back
// to cwd itself.
func detectProjectDir(cwd string) string {
	if v := os.Getenv("CLAUDE_PROJECT_DIR"); v != "" {
		return v
	}
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	dir := cwd
	for dir != "" {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

// loadFromDir loads <dir>/config.yaml, falling back to <dir>/config.json.
func loadFromDir(dir string) (*Config, error) {
	if dir == "" {
		return nil, nil
	}
	for _, name := range []string{"config.yaml", "config.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return nil, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("CLAUDE_RECALL_ENABLED"); v != "" {
		enabled := v != "0" && !strings.EqualFold(v, "false")
		cfg.Enabled = &enabled
	}
	if v := os.Getenv("CLAUDE_RECALL_STATE"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("CLAUDE_RECALL_PROJECT_DIR"); v != "" {
		cfg.ProjectDir = v
	}
	if v := os.Getenv("CLAUDE_RECALL_DEBUG"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 3 {
			cfg.DebugLevel = n
		}
	}
	if v := os.Getenv("CLAUDE_RECALL_SESSION"); v != "" {
		cfg.SessionID = v
	}
	if v := os.Getenv("CLAUDE_RECALL_RANKER"); v != "" {
		cfg.Relevance.Ranker = v
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
func merge(dst, src *Config) *Config {
	if src.Enabled != nil {
		dst.Enabled = src.Enabled
	}
	mergeStr(&dst.StateDir, src.StateDir)
	mergeStr(&dst.ProjectDir, src.ProjectDir)
	mergeInt(&dst.DebugLevel, src.DebugLevel)
	mergeStr(&dst.SessionID, src.SessionID)

	mergeInt(&dst.Inject.TopN, src.Inject.TopN)
	mergeInt(&dst.Inject.BudgetWarnTokens, src.Inject.BudgetWarnTokens)
	if len(src.Inject.ThemeBuckets) > 0 {
		dst.Inject.ThemeBuckets = src.Inject.ThemeBuckets
	}

	mergeStr(&dst.Relevance.Ranker, src.Relevance.Ranker)
	if src.Relevance.JaccardThreshold > 0 {
		dst.Relevance.JaccardThreshold = src.Relevance.JaccardThreshold
	}
	mergeInt(&dst.Relevance.TimeoutSecs, src.Relevance.TimeoutSecs)

	mergeInt(&dst.Lessons.StaleDays, src.Lessons.StaleDays)

	mergeStr(&dst.Summarize.Provider, src.Summarize.Provider)
	mergeStr(&dst.Summarize.Command, src.Summarize.Command)
	mergeStr(&dst.Summarize.Model, src.Summarize.Model)
	return dst
}
