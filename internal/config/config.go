package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath    string
	JSON          bool
	Plain         bool
	Select        string
	ResultsOnly   bool
	EnableActions string
	LockTimeout   string
	LogLevel      string
}

// Node holds connection defaults. Per-invocation flags override them.
type Node struct {
	Testnet     bool
	ServiceURL  string
	ServicePort int
	ConfFile    string
}

type Settings struct {
	OutputMode    string
	SelectFields  []string
	ResultsOnly   bool
	EnableActions []string
	LockTimeout   time.Duration
	LockPath      string
	LogLevel      logrus.Level
	Node          Node
}

type fileConfig struct {
	Output        string   `yaml:"output"`
	LogLevel      string   `yaml:"log_level"`
	EnableActions []string `yaml:"enable_actions"`
	Lock          struct {
		Path    string `yaml:"path"`
		Timeout string `yaml:"timeout"`
	} `yaml:"lock"`
	Node struct {
		Testnet       *bool  `yaml:"testnet"`
		ServiceURL    string `yaml:"service_url"`
		ServiceURLEnv string `yaml:"service_url_env"`
		ServicePort   *int   `yaml:"service_port"`
		ConfFile      string `yaml:"btc_conf_file"`
	} `yaml:"node"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	lockPath, err := defaultLockPath()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:  "json",
		LockTimeout: 30 * time.Second,
		LockPath:    lockPath,
		LogLevel:    logrus.WarnLevel,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "btcops", "config.yaml"), nil
}

func defaultLockPath() (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.Getenv("XDG_CACHE_HOME")
	}
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "btcops", "wallet.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.LogLevel != "" {
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("config log_level: %w", err)
		}
		settings.LogLevel = lvl
	}
	if len(cfg.EnableActions) > 0 {
		settings.EnableActions = normalizeList(cfg.EnableActions)
	}
	if cfg.Lock.Path != "" {
		settings.LockPath = cfg.Lock.Path
	}
	if cfg.Lock.Timeout != "" {
		d, err := time.ParseDuration(cfg.Lock.Timeout)
		if err != nil {
			return fmt.Errorf("config lock.timeout: %w", err)
		}
		settings.LockTimeout = d
	}
	if cfg.Node.Testnet != nil {
		settings.Node.Testnet = *cfg.Node.Testnet
	}
	if cfg.Node.ServiceURL != "" {
		settings.Node.ServiceURL = cfg.Node.ServiceURL
	}
	if cfg.Node.ServiceURLEnv != "" {
		settings.Node.ServiceURL = os.Getenv(cfg.Node.ServiceURLEnv)
	}
	if cfg.Node.ServicePort != nil {
		settings.Node.ServicePort = *cfg.Node.ServicePort
	}
	if cfg.Node.ConfFile != "" {
		settings.Node.ConfFile = cfg.Node.ConfFile
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("BTCOPS_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("BTCOPS_LOG_LEVEL"); v != "" {
		if lvl, err := logrus.ParseLevel(v); err == nil {
			settings.LogLevel = lvl
		}
	}
	if v := os.Getenv("BTCOPS_ENABLE_ACTIONS"); v != "" {
		settings.EnableActions = normalizeList(strings.Split(v, ","))
	}
	if v := os.Getenv("BTCOPS_LOCK_PATH"); v != "" {
		settings.LockPath = v
	}
	if v := os.Getenv("BTCOPS_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.LockTimeout = d
		}
	}
	if v := os.Getenv("BTCOPS_TESTNET"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Node.Testnet = b
		}
	}
	if v := os.Getenv("BTCOPS_SERVICE_URL"); v != "" {
		settings.Node.ServiceURL = v
	}
	if v := os.Getenv("BTCOPS_SERVICE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Node.ServicePort = n
		}
	}
	if v := os.Getenv("BTCOPS_BTC_CONF_FILE"); v != "" {
		settings.Node.ConfFile = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableActions) != "" {
		settings.EnableActions = normalizeList(strings.Split(flags.EnableActions, ","))
	}
	if flags.LockTimeout != "" {
		d, err := time.ParseDuration(flags.LockTimeout)
		if err != nil {
			return fmt.Errorf("parse --lock-timeout: %w", err)
		}
		settings.LockTimeout = d
	}
	if flags.LogLevel != "" {
		lvl, err := logrus.ParseLevel(flags.LogLevel)
		if err != nil {
			return fmt.Errorf("parse --log-level: %w", err)
		}
		settings.LogLevel = lvl
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	if settings.LockTimeout < 0 {
		return fmt.Errorf("lock timeout %s is negative", settings.LockTimeout)
	}
	if settings.Node.ServicePort < 0 || settings.Node.ServicePort > 65535 {
		return fmt.Errorf("service port %d out of range", settings.Node.ServicePort)
	}

	return nil
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		v := strings.ToLower(strings.TrimSpace(item))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
