package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mouse-blink/coverguard/internal/domain"
	"github.com/mouse-blink/coverguard/internal/domain/rules"
	m "github.com/mouse-blink/coverguard/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "coverguard"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	verboseFlagName      = "verbose"
	patchFlagName        = "patch"
	gitRootFlagName      = "git-root"
	parallelFlagName     = "parallel"
	noPagerFlagName      = "no-pager"
	outputFormatFlagName = "output-format"
	reportFileFlagName   = "report-file"
	formatFlagName       = "format"
	outputFlagName       = "output"
	indentFlagName       = "indent"

	gitRootKey         = "git_root"
	editorURLKey       = "editor_url"
	pathMappingKey     = "coverage.path_mapping"
	multilineCallsKey  = "exclude.multiline_calls"
	throwClassesKey    = "exclude.throw_classes"
	rulesKey           = "rules"
	checkParallelKey   = "check.parallel"
	checkNoPagerKey    = "check.no_pager"
	checkOutputKey     = "check.output_format"
	defaultEditorURL   = ""
	defaultParallel    = 1
	defaultIndent      = "  "
	defaultOutputStyle = "text"

	envPrefix = "COVERGUARD"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".coverguard.log"
	defaultLogLevel      = "info"
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

// configErr holds the failure to read the config file; commands refuse to run with it.
var configErr error

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	registerDefaults()

	configErr = readConfig()
}

// readConfig loads coverguard.yaml. Only a missing file is tolerated.
func readConfig() error {
	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return m.Errorf(m.ErrConfiguration, "config file %s: %v", viper.ConfigFileUsed(), err)
}

func registerDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(gitRootKey, "")
	viper.SetDefault(editorURLKey, defaultEditorURL)
	viper.SetDefault(pathMappingKey, []map[string]string{})
	viper.SetDefault(multilineCallsKey, true)
	viper.SetDefault(throwClassesKey, []string{})
	viper.SetDefault(rulesKey, []map[string]interface{}{
		{"type": rules.TypeDefault, "min_executable_lines": rules.DefaultMinExecutableLines},
	})
	viper.SetDefault(checkParallelKey, defaultParallel)
	viper.SetDefault(checkNoPagerKey, false)
	viper.SetDefault(checkOutputKey, defaultOutputStyle)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// loadRules builds the configured rule list.
func loadRules() ([]rules.Rule, error) {
	var configs []rules.Config
	if err := viper.UnmarshalKey(rulesKey, &configs); err != nil {
		slog.Error("failed to decode rules", "error", err)
		return nil, m.Errorf(m.ErrConfiguration, "rules: %v", err)
	}

	return rules.FromConfig(configs)
}

// loadPathMappings returns the configured coverage path prefix rewrites.
func loadPathMappings() ([]m.PathMapping, error) {
	var mappings []m.PathMapping
	if err := viper.UnmarshalKey(pathMappingKey, &mappings); err != nil {
		slog.Error("failed to decode path mapping", "error", err)
		return nil, m.Errorf(m.ErrConfiguration, "%s: %v", pathMappingKey, err)
	}

	for i, mapping := range mappings {
		if mapping.From == "" {
			return nil, m.Errorf(m.ErrConfiguration, "%s[%d]: from must not be empty", pathMappingKey, i)
		}
	}

	return mappings, nil
}

// loadExcluders returns the line excluders in the order they are applied.
func loadExcluders() []domain.LineExcluder {
	var excluders []domain.LineExcluder
	if viper.GetBool(multilineCallsKey) {
		excluders = append(excluders, domain.NewMultilineCallExcluder())
	}

	if classes := viper.GetStringSlice(throwClassesKey); len(classes) > 0 {
		excluders = append(excluders, domain.NewThrowExcluder(classes))
	}

	return excluders
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Numeric slog levels are accepted too (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at the configured level; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
