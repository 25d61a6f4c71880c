// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/srl-labs/pkilab/utils"
)

var deploymentCmd = &cobra.Command{
	Use:     "deployment",
	Aliases: []string{"dep"},
	Short:   "manage deployments serving issued keystores",
}

var deploymentCreateCmd = &cobra.Command{
	Use:   "create <name> <https-port> <pki-name> <domain>",
	Short: "write the compose definition and host record of a deployment",
	Args:  cobra.ExactArgs(4), //nolint:mnd
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		m, err := newDeploymentManager()
		if err != nil {
			return err
		}
		pass, err := readPassphrase()
		if err != nil {
			return err
		}
		return m.Provision(cobraCmd.Context(), args[0], args[1], args[2], args[3], pass)
	},
}

var deploymentStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "register the deployment's host record and run it in the foreground",
	Long: "register the deployment's domain in the hosts file, run the compose command " +
		"in the deployment directory and remove the record once it exits or is interrupted",
	Args: cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if cfg.IsSystemHostsFile() {
			return utils.CheckAndGetRootPrivs()
		}
		return nil
	},
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		m, err := newDeploymentManager()
		if err != nil {
			return err
		}
		return m.Activate(cobraCmd.Context(), args[0])
	},
}

var deploymentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "list deployments",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		m, err := newDeploymentManager()
		if err != nil {
			return err
		}
		infos, err := m.List()
		if err != nil {
			return err
		}
		return printDeployments(infos, outputFormat)
	},
}

func init() {
	deploymentCmd.AddCommand(deploymentCreateCmd, deploymentStartCmd, deploymentListCmd)
	deploymentCreateCmd.Flags().BoolVarP(&passwordStdin, "password-stdin", "", false,
		"read the keystore password from stdin")
	deploymentListCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format. One of [table, json]")
}
