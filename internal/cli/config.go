package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

type configConversion struct {
	DPI        int  `toml:"dpi"`
	KeepImages bool `toml:"keep_images"`
	Hidden     bool `toml:"hidden"`
}

type configLogsDir struct {
	Slides string `toml:"slides"`
}

// config represents the structure of the project.toml file.
type config struct {
	Conversion configConversion `toml:"conversion"`
	LogsDir    configLogsDir    `toml:"logs_dir"`
}

// flags represents the command-line arguments.
type flags struct {
	configPath string
	dpi        string
	keepImages bool
	hidden     bool
}

// settings are the effective options of one invocation.
type settings struct {
	projectRoot string
	logDir      string
	// dpiInput is the raw DPI text; empty means the user is prompted.
	dpiInput   string
	keepImages bool
	hidden     bool
}

// locateConfig returns the project root and config path. An explicit path wins;
// otherwise the project root is searched upward from the working directory,
// falling back to the working directory itself with no config.
func locateConfig(explicitPath string) (string, string) {
	if explicitPath != "" {
		return filepath.Dir(explicitPath), explicitPath
	}

	projectRoot, configPath, err := configurator.FindProjectRoot(".")
	if err == nil {
		return projectRoot, configPath
	}

	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		cwd = "."
	}

	return cwd, ""
}

// safeLoadConfig loads the TOML config, allowing a missing file without error.
func safeLoadConfig(path string) (config, error) {
	if path == "" {
		return config{}, nil
	}

	cfg, err := loadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config{}, nil
		}

		return config{}, fmt.Errorf("error loading config file: %w", err)
	}

	return cfg, nil
}

// loadConfig reads and parses the project.toml file.
func loadConfig(path string) (config, error) {
	var cfg config

	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to decode config file: %w", err)
	}

	return cfg, nil
}

// mergeConfigAndFlags combines settings from the config file and command-line flags.
// Flags take precedence over the config file settings.
func mergeConfigAndFlags(cfg *config, flgs flags, projectRoot string) settings {
	opts := settings{
		projectRoot: projectRoot,
		logDir:      cfg.LogsDir.Slides,
		dpiInput:    "",
		keepImages:  cfg.Conversion.KeepImages,
		hidden:      cfg.Conversion.Hidden,
	}

	if cfg.Conversion.DPI != 0 {
		opts.dpiInput = fmt.Sprint(cfg.Conversion.DPI)
	}

	if flgs.dpi != "" {
		opts.dpiInput = flgs.dpi
	}

	if flgs.keepImages {
		opts.keepImages = true
	}

	if flgs.hidden {
		opts.hidden = true
	}

	return opts
}

// setupLogger initializes the logger, creating the log directory if needed.
func setupLogger(projectRoot, logDirConfig string) (*logger.Logger, error) {
	logDir := logDirConfig
	if logDir == "" {
		logDir = filepath.Join(projectRoot, "logs", "slides")
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("20060102_150405"))

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
