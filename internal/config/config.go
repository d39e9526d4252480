package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// Instance holds connection and authentication settings for one GitLab server.
type Instance struct {
	URL          string `toml:"url"`
	Token        string `toml:"token"`
	OAuthToken   string `toml:"oauth_token"`
	RefreshToken string `toml:"refresh_token"`
	ClientID     string `toml:"client_id"`
}

// URLOrDefault returns URL if set, otherwise gitlab.com.
func (i Instance) URLOrDefault() string {
	if i.URL != "" {
		return strings.TrimRight(i.URL, "/")
	}
	return DefaultGitLabURL
}

// Config holds all gitlab-trace configuration.
type Config struct {
	Default      string              `toml:"default"`
	PollInterval string              `toml:"poll_interval"`
	TailLines    int                 `toml:"tail_lines"`
	GitLab       Instance            `toml:"gitlab"`
	Instances    map[string]Instance `toml:"instances"`
}

// DefaultGitLabURL is used when no instance URL is configured.
const DefaultGitLabURL = "https://gitlab.com"

const (
	defaultPollInterval = time.Second
	defaultTailLines    = 10
)

// PollIntervalOrDefault returns the parsed poll interval, or one second if unset.
func (c Config) PollIntervalOrDefault() time.Duration {
	if c.PollInterval == "" {
		return defaultPollInterval
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}

// TailLinesOrDefault returns TailLines if set, otherwise 10.
func (c Config) TailLinesOrDefault() int {
	if c.TailLines > 0 {
		return c.TailLines
	}
	return defaultTailLines
}

// InstanceName resolves the instance to use: name if given, else Default.
// An empty result denotes the [gitlab] table.
func (c Config) InstanceName(name string) string {
	if name != "" {
		return name
	}
	return c.Default
}

// Instance returns the settings for the named instance; "" selects [gitlab].
func (c Config) Instance(name string) (Instance, error) {
	if name == "" {
		return c.GitLab, nil
	}
	inst, ok := c.Instances[name]
	if !ok {
		return Instance{}, errors.Errorf("unknown GitLab instance %q (configured: %s)", name, strings.Join(c.names(), ", "))
	}
	return inst, nil
}

// SetInstance stores inst under name; "" stores it as [gitlab].
func (c *Config) SetInstance(name string, inst Instance) {
	if name == "" {
		c.GitLab = inst
		return
	}
	if c.Instances == nil {
		c.Instances = make(map[string]Instance)
	}
	c.Instances[name] = inst
}

func (c Config) names() []string {
	names := []string{"(default)"}
	for n := range c.Instances {
		names = append(names, n)
	}
	sort.Strings(names[1:])
	return names
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns an empty config without error.
// Environment variables always take precedence over file values:
//   - GITLAB_TOKEN overrides the token of every instance
//   - GITLAB_URL   overrides the url of every instance
func LoadFrom(path string) (Config, error) {
	cfg, err := LoadRaw(path)
	if err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the TOML file without applying environment overrides.
// It is used when the file is about to be rewritten.
func LoadRaw(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", path)
		}
	}
	if cfg.PollInterval != "" {
		if d, err := time.ParseDuration(cfg.PollInterval); err != nil || d <= 0 {
			return Config{}, errors.Errorf("invalid poll_interval %q in %s", cfg.PollInterval, path)
		}
	}
	if cfg.Default != "" {
		if _, ok := cfg.Instances[cfg.Default]; !ok {
			return Config{}, errors.Errorf("default instance %q is not defined in %s", cfg.Default, path)
		}
	}
	return cfg, nil
}

// DefaultConfigPath returns the default path for the gitlab-trace config file.
func DefaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "gitlab-trace", "config.toml")
}

// ExpandPath expands a leading ~ in a user-supplied config path.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "expanding %s", path)
	}
	return expanded, nil
}

func applyEnvOverrides(cfg *Config) {
	token := os.Getenv("GITLAB_TOKEN")
	url := os.Getenv("GITLAB_URL")
	apply := func(inst Instance) Instance {
		if token != "" {
			inst.Token = token
		}
		if url != "" {
			inst.URL = url
		}
		return inst
	}
	cfg.GitLab = apply(cfg.GitLab)
	for name, inst := range cfg.Instances {
		cfg.Instances[name] = apply(inst)
	}
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "opening config file")
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
