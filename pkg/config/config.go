// Package config resolves pyneat's runtime configuration. Values layer as
// flags > environment (PYNEAT_*) > .pyneat.yaml > pyproject [tool.pyneat] >
// built-in defaults; the flag layer is applied by the command that owns the
// flag, everything below it is resolved here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Thresholds bound the notebook metrics before they become findings.
// Zero is a real limit, not "unset": the default forbids any function
// definition inside a notebook.
type Thresholds struct {
	MaxCells        int `mapstructure:"max_cells" json:"max_cells"`
	MaxLinesPerCell int `mapstructure:"max_lines_per_cell" json:"max_lines_per_cell"`
	MaxFunctionDefs int `mapstructure:"max_function_defs" json:"max_function_defs"`
}

// BranchConfig holds the branch hygiene settings.
type BranchConfig struct {
	Whitelist []string `mapstructure:"whitelist" json:"whitelist"`
	Mainline  string   `mapstructure:"mainline" json:"mainline"`
}

// Config holds all configuration for pyneat
type Config struct {
	Thresholds        Thresholds   `mapstructure:"thresholds" json:"thresholds"`
	RestrictedImports []string     `mapstructure:"restricted_imports" json:"restricted_imports"`
	Tools             []string     `mapstructure:"tools" json:"tools"`
	Branches          BranchConfig `mapstructure:"branches" json:"branches"`
	Concurrency       int          `mapstructure:"concurrency" json:"concurrency"`
	SchemaCheck       bool         `mapstructure:"schema_check" json:"schema_check"`
}

var defaultConfig = Config{
	Thresholds: Thresholds{
		MaxCells:        10,
		MaxLinesPerCell: 15,
		MaxFunctionDefs: 0,
	},
	RestrictedImports: []string{"subprocess"},
	Tools:             []string{"pyflakes", "mypy", "pylint", "black"},
	Branches: BranchConfig{
		Whitelist: []string{"main", "dev"},
		Mainline:  "origin/main",
	},
	Concurrency: 0, // 0 resolves to half the CPUs at engine construction
	SchemaCheck: false,
}

// Default returns a copy of the built-in configuration.
func Default() Config {
	return defaultConfig
}

// Load resolves the configuration for a run rooted at targetDir. A missing
// .pyneat.yaml or pyproject.toml is not an error; a present but unreadable
// one is.
func Load(targetDir string) (*Config, error) {
	v := viper.New()

	// Built-in defaults sit at the bottom of the stack
	v.SetDefault("thresholds.max_cells", defaultConfig.Thresholds.MaxCells)
	v.SetDefault("thresholds.max_lines_per_cell", defaultConfig.Thresholds.MaxLinesPerCell)
	v.SetDefault("thresholds.max_function_defs", defaultConfig.Thresholds.MaxFunctionDefs)
	v.SetDefault("restricted_imports", defaultConfig.RestrictedImports)
	v.SetDefault("tools", defaultConfig.Tools)
	v.SetDefault("branches.whitelist", defaultConfig.Branches.Whitelist)
	v.SetDefault("branches.mainline", defaultConfig.Branches.Mainline)
	v.SetDefault("concurrency", defaultConfig.Concurrency)
	v.SetDefault("schema_check", defaultConfig.SchemaCheck)

	// pyproject [tool.pyneat] overrides the built-ins but stays below the
	// yaml file and the environment
	if err := applyPyproject(v, targetDir); err != nil {
		return nil, err
	}

	v.SetConfigName(".pyneat")
	v.SetConfigType("yaml")
	if targetDir != "" {
		v.AddConfigPath(targetDir)
	}
	v.AddConfigPath(".")
	if home, err := GetPyneatHome(); err == nil {
		v.AddConfigPath(home)
	}

	v.SetEnvPrefix("PYNEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read .pyneat.yaml: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// applyPyproject folds pyproject's [tool.pyneat] table into the default
// layer. Keys use the same names as .pyneat.yaml.
func applyPyproject(v *viper.Viper, targetDir string) error {
	if targetDir == "" {
		return nil
	}
	path := filepath.Join(targetDir, "pyproject.toml")
	data, err := os.ReadFile(path) // #nosec G304 -- targetDir is the user-supplied audit target
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc struct {
		Tool struct {
			Pyneat map[string]interface{} `toml:"pyneat"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for key, value := range flattenKeys("", doc.Tool.Pyneat) {
		v.SetDefault(key, value)
	}
	return nil
}

// flattenKeys rewrites a nested table as dotted viper keys.
func flattenKeys(prefix string, table map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{})
	for key, value := range table {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			for k, v := range flattenKeys(full, nested) {
				flat[k] = v
			}
			continue
		}
		flat[full] = value
	}
	return flat
}

// GetPyneatHome returns the pyneat home directory
func GetPyneatHome() (string, error) {
	if home := os.Getenv("PYNEAT_HOME"); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".pyneat"), nil
}

// EnsurePyneatHome creates the pyneat home directory if it doesn't exist
func EnsurePyneatHome() (string, error) {
	homeDir, err := GetPyneatHome()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(homeDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create pyneat home directory: %w", err)
	}

	return homeDir, nil
}

// GetWorkDir returns the directory remote repositories are cloned into.
func GetWorkDir() (string, error) {
	homeDir, err := EnsurePyneatHome()
	if err != nil {
		return "", err
	}
	workDir := filepath.Join(homeDir, "work")
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return workDir, nil
}
