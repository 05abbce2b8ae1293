package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Generator GeneratorConfig `mapstructure:"generator" json:"generator"`
	UserRules []string        `mapstructure:"user_rules" json:"user_rules"`
	Store     StoreConfig     `mapstructure:"store" json:"store"`
	Redaction RedactionConfig `mapstructure:"redaction" json:"redaction"`
	TUI       TUIConfig       `mapstructure:"tui" json:"tui"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

type GeneratorConfig struct {
	Command string   `mapstructure:"command" json:"command"`
	Args    []string `mapstructure:"args" json:"args"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

type RedactionConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

type TUIConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// ProjectConfig is read from ./cloudguard.yaml in the working directory.
type ProjectConfig struct {
	ProjectRules []string     `mapstructure:"project_rules" json:"project_rules"`
	GitHub       GitHubConfig `mapstructure:"github" json:"github"`
}

type GitHubConfig struct {
	Owner       string   `mapstructure:"owner" json:"owner"`
	Repo        string   `mapstructure:"repo" json:"repo"`
	BaseBranch  string   `mapstructure:"base_branch" json:"base_branch"`
	Reviewers   []string `mapstructure:"reviewers" json:"reviewers"`
	ControlsDir string   `mapstructure:"controls_dir" json:"controls_dir"`
}

func Defaults() Config {
	return Config{
		Generator: GeneratorConfig{
			Command: "claude",
			Args:    []string{},
		},
		UserRules: []string{},
		Redaction: RedactionConfig{Enabled: true},
		TUI:       TUIConfig{Enabled: true},
		Log:       LogConfig{Level: "warn", Format: "text"},
	}
}

func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		ProjectRules: []string{},
		GitHub: GitHubConfig{
			BaseBranch:  "main",
			Reviewers:   []string{},
			ControlsDir: "security-controls",
		},
	}
}

// Rules is every extra instruction passed to the generator, user rules first.
func Rules(cfg Config, project ProjectConfig) []string {
	rules := make([]string, 0, len(cfg.UserRules)+len(project.ProjectRules))
	rules = append(rules, cfg.UserRules...)
	return append(rules, project.ProjectRules...)
}

func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".cloudguard")
}

func Load(configPath string) (Config, ProjectConfig, error) {
	userCfg := Defaults()
	projectCfg := DefaultProjectConfig()

	if err := loadUserConfig(configPath, &userCfg); err != nil {
		return Config{}, ProjectConfig{}, err
	}
	if err := loadProjectConfig(&projectCfg); err != nil {
		return Config{}, ProjectConfig{}, err
	}

	if userCfg.Generator.Command == "" {
		userCfg.Generator.Command = "claude"
	}
	if userCfg.Store.Path == "" {
		userCfg.Store.Path = filepath.Join(Dir(), "cloudguard.db")
	}
	if userCfg.Log.Level == "" {
		userCfg.Log.Level = "warn"
	}
	if userCfg.Log.Format == "" {
		userCfg.Log.Format = "text"
	}
	if projectCfg.GitHub.BaseBranch == "" {
		projectCfg.GitHub.BaseBranch = "main"
	}
	if projectCfg.GitHub.ControlsDir == "" {
		projectCfg.GitHub.ControlsDir = "security-controls"
	}

	return userCfg, projectCfg, nil
}

func loadUserConfig(configPath string, cfg *Config) error {
	path := configPath
	if path == "" {
		path = filepath.Join(Dir(), "config.yaml")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read user config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to load user config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse user config: %w", err)
	}
	return nil
}

func loadProjectConfig(cfg *ProjectConfig) error {
	path := filepath.Join(".", "cloudguard.yaml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read project config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to load project config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse project config: %w", err)
	}
	return nil
}
