// Package config layers npmnuke settings from defaults, an optional TOML
// config file, NPMNUKE_* environment variables and command line flags, in
// that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName        = "npmnuke"
	EnvPrefix      = "NPMNUKE"
	ConfigFileName = "config.toml"
	IgnoreFileName = ".npmnukeignore"
)

// Flag names double as config file keys and, upper cased with underscores,
// as environment variable names.
const (
	FlagNonInteractive = "non-interactive"
	FlagVerbose        = "verbose"
	FlagSkipSize       = "skip-calculating-size"
	FlagIgnoreFile     = "ignore-file"
	FlagDisableIgnore  = "disable-ignore"
	FlagIgnoreDot      = "ignore-dot"
	FlagDryRun         = "dry-run"
	FlagWorkers        = "workers"
	FlagGitRoot        = "git-root"
	FlagLogFile        = "log-file"
	FlagConfig         = "config"
)

var ErrConfigFileMissing = errors.New("config file does not exist")

type Settings struct {
	NonInteractive bool   `mapstructure:"non-interactive"`
	Verbose        bool   `mapstructure:"verbose"`
	SkipSize       bool   `mapstructure:"skip-calculating-size"`
	IgnoreFile     string `mapstructure:"ignore-file"`
	DisableIgnore  bool   `mapstructure:"disable-ignore"`
	IgnoreDot      bool   `mapstructure:"ignore-dot"`
	DryRun         bool   `mapstructure:"dry-run"`
	Workers        int    `mapstructure:"workers"`
	GitRoot        bool   `mapstructure:"git-root"`
	LogFile        string `mapstructure:"log-file"`

	// IgnoreFileExplicit is true when the ignore file was chosen by the user
	// rather than defaulted, a missing explicit file is fatal.
	IgnoreFileExplicit bool `mapstructure:"-"`
	// ConfigFile is the file that was read, empty when none was
	ConfigFile string `mapstructure:"-"`
}

func DefaultSettings() Settings {
	return Settings{
		IgnoreDot: true,
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/npmnuke or the platform equivalent.
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()

	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	return filepath.Join(configDir, AppName), nil
}

// DefaultIgnoreFile returns ~/.npmnukeignore.
func DefaultIgnoreFile() (string, error) {
	home, err := os.UserHomeDir()

	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, IgnoreFileName), nil
}

// RegisterFlags adds every setting to flags with its default value.
func RegisterFlags(flags *pflag.FlagSet) {
	defaults := DefaultSettings()

	flags.Bool(FlagNonInteractive, defaults.NonInteractive, "do not start the interactive display (numbered list prompt)")
	flags.BoolP(FlagVerbose, "v", defaults.Verbose, "show verbose output")
	flags.Bool(FlagSkipSize, defaults.SkipSize, "skip calculating the size of the node_modules folders")
	flags.String(FlagIgnoreFile, "", "path to the ignore file, by default "+IgnoreFileName+" in the home directory is used")
	flags.Bool(FlagDisableIgnore, defaults.DisableIgnore, "do not use an ignore file when scanning")
	flags.Bool(FlagIgnoreDot, defaults.IgnoreDot, "ignore dot folders (.vscode/ .git/ etc.)")
	flags.Bool(FlagDryRun, defaults.DryRun, "do not remove any folders")
	flags.Int(FlagWorkers, defaults.Workers, "number of folders sized at the same time (0 means twice the CPU count)")
	flags.Bool(FlagGitRoot, defaults.GitRoot, "scan from the root of the enclosing git work tree")
	flags.String(FlagLogFile, defaults.LogFile, "write logs to this file while the interactive display runs")
	flags.String(FlagConfig, "", "config file (default $XDG_CONFIG_HOME/"+AppName+"/"+ConfigFileName+")")
}

// Load resolves the settings for one run. configFile may be empty, in which
// case the default config file is read when it exists.
func Load(flags *pflag.FlagSet, configFile string) (Settings, error) {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault(FlagNonInteractive, defaults.NonInteractive)
	v.SetDefault(FlagVerbose, defaults.Verbose)
	v.SetDefault(FlagSkipSize, defaults.SkipSize)
	v.SetDefault(FlagIgnoreFile, "")
	v.SetDefault(FlagDisableIgnore, defaults.DisableIgnore)
	v.SetDefault(FlagIgnoreDot, defaults.IgnoreDot)
	v.SetDefault(FlagDryRun, defaults.DryRun)
	v.SetDefault(FlagWorkers, defaults.Workers)
	v.SetDefault(FlagGitRoot, defaults.GitRoot)
	v.SetDefault(FlagLogFile, defaults.LogFile)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigFile(configFile)

	if err != nil {
		return Settings{}, err
	}

	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		v.SetConfigType("toml")

		if err = v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config %s: %w", resolvedPath, err)
		}
	}

	if flags != nil {
		if err = v.BindPFlags(flags); err != nil {
			return Settings{}, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var settings Settings

	if err = v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if settings.Workers < 0 {
		return Settings{}, fmt.Errorf("%s must not be negative, got %d", FlagWorkers, settings.Workers)
	}

	settings.ConfigFile = resolvedPath
	settings.IgnoreFileExplicit = settings.IgnoreFile != ""

	if !settings.IgnoreFileExplicit {
		if settings.IgnoreFile, err = DefaultIgnoreFile(); err != nil {
			return Settings{}, err
		}
	}

	return settings, nil
}

func resolveConfigFile(configFile string) (string, error) {
	if configFile != "" {
		if !fileExists(configFile) {
			return "", fmt.Errorf("%w: %s", ErrConfigFileMissing, configFile)
		}

		return configFile, nil
	}

	configDir, err := ConfigDir()

	if err != nil {
		// No config directory just means no config file
		return "", nil
	}

	defaultPath := filepath.Join(configDir, ConfigFileName)

	if fileExists(defaultPath) {
		return defaultPath, nil
	}

	return "", nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
