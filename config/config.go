package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultPort            = "8080"
	defaultReadmeMaxChars  = 1000
	defaultResultsPerPage  = 20
	defaultCacheSize       = 256
	defaultCacheTTL        = 5 * time.Minute
	defaultIndexWorkers    = 4
	defaultMaxSpecBytes    = 5 * 1024 * 1024
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

// BindFlags lets CLI flags take precedence over environment variables and the config file.
// Only flags present on the set are bound.
func (c *Config) BindFlags(flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"PORT":        "port",
		"CORPUS_ROOT": "corpus-root",
		"KVDB_PATH":   "kvdb-path",
		"LOG_LEVEL":   "log-level",
	}
	for key, flagName := range bindings {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := c.config.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flagName, err)
		}
	}
	return nil
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}
	if len(port) == 0 {
		port = defaultPort
	}

	return port
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return c.durationSetting("SHUTDOWN_TIMEOUT", "server.shutdown_timeout", defaultShutdownTimeout)
}

func (c *Config) GetCorpusRoot() string {
	corpusRoot := c.config.GetString("CORPUS_ROOT")
	if len(corpusRoot) == 0 {
		corpusRoot = c.config.GetString("corpus.root")
	}

	return corpusRoot
}

// GetCorpusExcludes returns doublestar patterns, relative to a repository root, that the walker skips.
func (c *Config) GetCorpusExcludes() []string {
	if excludes := c.config.GetString("CORPUS_EXCLUDE"); len(excludes) > 0 {
		return splitList(excludes)
	}

	return c.config.GetStringSlice("corpus.exclude")
}

func (c *Config) GetKVDBPath() string {
	kvdbPath := c.config.GetString("KVDB_PATH")
	if len(kvdbPath) == 0 {
		kvdbPath = c.config.GetString("database.kvdb_path")
	}

	return kvdbPath
}

func (c *Config) GetReadmeMaxChars() int {
	return c.intSetting("README_MAX_CHARS", "search.readme_max_chars", defaultReadmeMaxChars)
}

func (c *Config) GetDefaultLimit() int {
	return c.intSetting("SEARCH_DEFAULT_LIMIT", "search.default_limit", defaultResultsPerPage)
}

// GetCacheSize returns the number of cached search responses. Zero disables the cache.
func (c *Config) GetCacheSize() int {
	return c.intSetting("SEARCH_CACHE_SIZE", "search.cache_size", defaultCacheSize)
}

func (c *Config) GetCacheTTL() time.Duration {
	return c.durationSetting("SEARCH_CACHE_TTL", "search.cache_ttl", defaultCacheTTL)
}

func (c *Config) GetIndexWorkers() int {
	return c.intSetting("INDEX_WORKERS", "index.workers", defaultIndexWorkers)
}

func (c *Config) GetRebuildOnStart() bool {
	if c.config.IsSet("REBUILD_ON_START") {
		return c.config.GetBool("REBUILD_ON_START")
	}
	if c.config.IsSet("index.rebuild_on_start") {
		return c.config.GetBool("index.rebuild_on_start")
	}

	return true
}

func (c *Config) GetMaxSpecBytes() int64 {
	return int64(c.intSetting("MAX_SPEC_BYTES", "apis.max_spec_bytes", defaultMaxSpecBytes))
}

func (c *Config) GetLogLevel() string {
	level := c.config.GetString("LOG_LEVEL")
	if len(level) == 0 {
		level = c.config.GetString("log.level")
	}
	if len(level) == 0 {
		level = defaultLogLevel
	}

	return level
}

func (c *Config) intSetting(envKey string, key string, fallback int) int {
	if c.config.IsSet(envKey) {
		return c.config.GetInt(envKey)
	}
	if c.config.IsSet(key) {
		return c.config.GetInt(key)
	}

	return fallback
}

func (c *Config) durationSetting(envKey string, key string, fallback time.Duration) time.Duration {
	if c.config.IsSet(envKey) {
		return c.config.GetDuration(envKey)
	}
	if c.config.IsSet(key) {
		return c.config.GetDuration(key)
	}

	return fallback
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
