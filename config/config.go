// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads pkilab settings.
//
// Settings are layered, later layers win: built-in defaults, the YAML config
// file, a .env file, PKILAB_* environment variables and finally command line
// flags. A variable set in the environment takes precedence over the same
// variable in the .env file.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/srl-labs/pkilab/constants"
	"github.com/srl-labs/pkilab/deployment"
	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/exec"
	"github.com/srl-labs/pkilab/hostsfile"
	"github.com/srl-labs/pkilab/utils"
)

const (
	// DefaultFile is looked up in the working directory when no config file is given.
	DefaultFile = "pkilab.yml"
	// DefaultEnvFile is read when present in the working directory.
	DefaultEnvFile = ".env"
)

// Setting keys, used in the config file, as flag names and,
// upper-cased with dashes replaced by underscores, as PKILAB_* variables.
const (
	KeyPKIRoot        = "pki-root"
	KeyDeploymentRoot = "deployment-root"
	KeyTemplatesDir   = "templates-dir"
	KeyHostsFile      = "hosts-file"
	KeyOpenSSL        = "openssl"
	KeyKeytool        = "keytool"
	KeyComposeCommand = "compose-command"
	KeyRootDays       = "root-days"
	KeyLeafDays       = "leaf-days"
	KeyGracePeriod    = "grace-period"
)

// Config holds pkilab settings.
type Config struct {
	PKIRoot        string        `yaml:"pki-root"`
	DeploymentRoot string        `yaml:"deployment-root"`
	TemplatesDir   string        `yaml:"templates-dir,omitempty"`
	HostsFile      string        `yaml:"hosts-file"`
	OpenSSL        string        `yaml:"openssl"`
	Keytool        string        `yaml:"keytool"`
	ComposeCommand string        `yaml:"compose-command"`
	RootDays       int           `yaml:"root-days"`
	LeafDays       int           `yaml:"leaf-days"`
	GracePeriod    time.Duration `yaml:"grace-period"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		PKIRoot:        "pkis",
		DeploymentRoot: "deployments",
		HostsFile:      hostsfile.DefaultPath,
		OpenSSL:        "openssl",
		Keytool:        "keytool",
		ComposeCommand: deployment.DefaultComposeCommand,
		RootDays:       3650,
		LeafDays:       365,
		GracePeriod:    10 * time.Second,
	}
}

// Keys returns every setting key in lexical order.
func Keys() []string {
	keys := []string{
		KeyPKIRoot, KeyDeploymentRoot, KeyTemplatesDir, KeyHostsFile, KeyOpenSSL,
		KeyKeytool, KeyComposeCommand, KeyRootDays, KeyLeafDays, KeyGracePeriod,
	}
	sort.Strings(keys)
	return keys
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return constants.EnvPrefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// Set parses value into the setting named key.
func (c *Config) Set(key, value string) error {
	var err error

	switch key {
	case KeyPKIRoot:
		c.PKIRoot = value
	case KeyDeploymentRoot:
		c.DeploymentRoot = value
	case KeyTemplatesDir:
		c.TemplatesDir = value
	case KeyHostsFile:
		c.HostsFile = value
	case KeyOpenSSL:
		c.OpenSSL = value
	case KeyKeytool:
		c.Keytool = value
	case KeyComposeCommand:
		c.ComposeCommand = value
	case KeyRootDays:
		c.RootDays, err = strconv.Atoi(value)
	case KeyLeafDays:
		c.LeafDays, err = strconv.Atoi(value)
	case KeyGracePeriod:
		c.GracePeriod, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("%w: unknown setting %q", pkierrors.ErrIncorrectInput, key)
	}

	if err != nil {
		return fmt.Errorf("%w: setting %s: %v", pkierrors.ErrIncorrectInput, key, err)
	}
	return nil
}

// Load builds the settings from the config file at path and the environment.
// An empty path falls back to DefaultFile, which may be absent. An empty
// envFile falls back to DefaultEnvFile, which may be absent too.
func Load(path, envFile string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if explicit || utils.FileExists(path) {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv := map[string]string{}
	if utils.FileExists(envFile) {
		var err error
		dotenv, err = godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("failed reading %s: %w", envFile, err)
		}
		log.Debugf("read %d variables from %s", len(dotenv), envFile)
	}

	lookup := func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		v, ok := dotenv[name]
		return v, ok
	}

	for _, k := range Keys() {
		if v, ok := lookup(EnvName(k)); ok {
			if err := c.Set(k, v); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

func (c *Config) loadFile(path string) error {
	p, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("failed reading config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return fmt.Errorf("%w: config file %s: %v", pkierrors.ErrIncorrectInput, p, err)
	}
	log.Debugf("loaded config file %s", p)
	return nil
}

// Finalize expands home-relative paths and validates the settings.
// It is called once every layer has been applied.
func (c *Config) Finalize() error {
	for _, p := range []*string{&c.PKIRoot, &c.DeploymentRoot, &c.TemplatesDir, &c.HostsFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return c.Validate()
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	switch {
	case c.PKIRoot == "":
		return fmt.Errorf("%w: %s is empty", pkierrors.ErrIncorrectInput, KeyPKIRoot)
	case c.DeploymentRoot == "":
		return fmt.Errorf("%w: %s is empty", pkierrors.ErrIncorrectInput, KeyDeploymentRoot)
	case c.HostsFile == "":
		return fmt.Errorf("%w: %s is empty", pkierrors.ErrIncorrectInput, KeyHostsFile)
	case c.OpenSSL == "" || c.Keytool == "":
		return fmt.Errorf("%w: %s and %s must be set", pkierrors.ErrIncorrectInput, KeyOpenSSL, KeyKeytool)
	case c.RootDays <= 0 || c.LeafDays <= 0:
		return fmt.Errorf("%w: validity periods must be positive", pkierrors.ErrIncorrectInput)
	case c.LeafDays >= c.RootDays:
		return fmt.Errorf("%w: %s (%d) must be shorter than %s (%d)",
			pkierrors.ErrIncorrectInput, KeyLeafDays, c.LeafDays, KeyRootDays, c.RootDays)
	case c.GracePeriod < 0:
		return fmt.Errorf("%w: %s is negative", pkierrors.ErrIncorrectInput, KeyGracePeriod)
	}

	if _, err := exec.NewExecCmdFromString(c.ComposeCommand); err != nil {
		return fmt.Errorf("%w: %s: %v", pkierrors.ErrIncorrectInput, KeyComposeCommand, err)
	}

	return nil
}

// IsSystemHostsFile reports whether the configured hosts file is the system one.
func (c *Config) IsSystemHostsFile() bool {
	return c.HostsFile == hostsfile.DefaultPath
}
