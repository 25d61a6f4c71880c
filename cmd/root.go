// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/srl-labs/pkilab/config"
	"github.com/srl-labs/pkilab/constants"
)

var (
	debugCount int
	logLevel   string
	cfgFile    string
	envFile    string

	// cfg is populated by the root command's pre-run hook.
	cfg *config.Config
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:               constants.Pkilab,
	Short:             "bootstrap lab PKIs, issue server keystores and run HTTPS deployments serving them",
	PersistentPreRunE: preRunFn,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := SignalHandledContext()
	defer cancel()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	RootCmd.SilenceUsage = true
	RootCmd.PersistentFlags().CountVarP(&debugCount, "debug", "d", "enable debug mode")
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info",
		"logging level; one of [trace, debug, info, warning, error, fatal]")
	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"path to the config file (default "+config.DefaultFile+" if present)")
	_ = RootCmd.MarkPersistentFlagFilename("config", "*.yaml", "*.yml")
	RootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "", "",
		"path to a file with PKILAB_* variables (default "+config.DefaultEnvFile+" if present)")

	d := config.Default()
	RootCmd.PersistentFlags().String(config.KeyPKIRoot, d.PKIRoot, "directory holding the PKIs")
	RootCmd.PersistentFlags().String(config.KeyDeploymentRoot, d.DeploymentRoot, "directory holding the deployments")
	RootCmd.PersistentFlags().String(config.KeyTemplatesDir, d.TemplatesDir,
		"directory with templates overriding the built-in ones")
	RootCmd.PersistentFlags().String(config.KeyHostsFile, d.HostsFile, "hosts file deployments are registered in")

	RootCmd.AddCommand(pkiCmd)
	RootCmd.AddCommand(certCmd)
	RootCmd.AddCommand(deploymentCmd)
	RootCmd.AddCommand(preflightCmd)
	RootCmd.AddCommand(versionCmd)
}

func preRunFn(cobraCmd *cobra.Command, _ []string) error {
	// setting log level
	switch {
	case debugCount > 0:
		log.SetLevel(log.DebugLevel)
	default:
		l, err := log.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(l)
	}

	// setting output to stderr, so that list outputs can be parsed
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	c, err := config.Load(cfgFile, envFile)
	if err != nil {
		return err
	}

	// flags set on the command line win over every other layer
	var setErr error
	cobraCmd.Flags().Visit(func(f *pflag.Flag) {
		if setErr != nil || !isConfigKey(f.Name) {
			return
		}
		setErr = c.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return setErr
	}

	if err := c.Finalize(); err != nil {
		return err
	}
	cfg = c

	log.Debugf("using pki root %q, deployment root %q, hosts file %q", cfg.PKIRoot, cfg.DeploymentRoot, cfg.HostsFile)

	return nil
}

func isConfigKey(name string) bool {
	for _, k := range config.Keys() {
		if k == name {
			return true
		}
	}
	return false
}
