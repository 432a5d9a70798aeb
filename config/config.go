package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/byte4ever/bbpr/access"
)

// Config is the root of the configuration file.
type Config struct {
	Integrations Integrations `yaml:"integrations"`
	Scaffolder   Scaffolder   `yaml:"scaffolder"`
}

// Integrations groups the configured hosts.
type Integrations struct {
	BitbucketServer []BitbucketServer `yaml:"bitbucketServer"`
}

// BitbucketServer is one Bitbucket Server host.
type BitbucketServer struct {
	Host       string `yaml:"host"`
	APIBaseURL string `yaml:"apiBaseUrl,omitempty"`
	Token      string `yaml:"token,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
}

// Scaffolder holds workflow fallbacks.
type Scaffolder struct {
	DefaultAuthor        Author `yaml:"defaultAuthor"`
	DefaultCommitMessage string `yaml:"defaultCommitMessage,omitempty"`
	DefaultTargetBranch  string `yaml:"defaultTargetBranch,omitempty"`
}

// Author is a commit identity.
type Author struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

var (
	errHostRequired     = errors.New("host must be set")
	errPasswordRequired = errors.New("username requires a password")
)

// Load reads the file at path, expands ${VAR}
// references from the environment and validates the
// result.
func Load(path string) (*Config, error) {
	const errCtx = "loading config"

	raw, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return cfg, nil
}

// Parse decodes raw YAML, expanding environment
// references first.
func Parse(raw []byte) (*Config, error) {
	const errCtx = "parsing config"

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal(
		[]byte(expanded), &cfg,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &cfg, nil
}

// Validate checks every integration entry.
func (c *Config) Validate() error {
	for i, bs := range c.Integrations.BitbucketServer {
		if bs.Host == "" {
			return fmt.Errorf(
				"integrations.bitbucketServer[%d]: %w",
				i, errHostRequired,
			)
		}

		if bs.Username != "" && bs.Password == "" {
			return fmt.Errorf(
				"integrations.bitbucketServer[%d] (%s): %w",
				i, bs.Host, errPasswordRequired,
			)
		}
	}

	return nil
}

// AccessIntegrations converts the configured hosts for
// access.NewResolver.
func (c *Config) AccessIntegrations() []access.Integration {
	out := make(
		[]access.Integration,
		0,
		len(c.Integrations.BitbucketServer),
	)

	for _, bs := range c.Integrations.BitbucketServer {
		out = append(out, access.Integration{
			Host:       bs.Host,
			APIBaseURL: bs.APIBaseURL,
			Token:      bs.Token,
			Username:   bs.Username,
			Password:   bs.Password,
		})
	}

	return out
}
