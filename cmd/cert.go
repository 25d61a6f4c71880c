// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"github.com/spf13/cobra"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "manage server certificates",
}

var certCreateCmd = &cobra.Command{
	Use:   "create <pki-name> <domain>",
	Short: "issue a server certificate and package it into a Java keystore",
	Long: "sign a server certificate for <domain> with the root of <pki-name> and store it " +
		"together with its key in servers/<domain>/keystore.jks, protected by a password",
	Args: cobra.ExactArgs(2), //nolint:mnd
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		m, err := newPKIManager()
		if err != nil {
			return err
		}
		pass, err := readPassphrase()
		if err != nil {
			return err
		}
		return m.Issue(cobraCmd.Context(), args[0], args[1], pass)
	},
}

func init() {
	certCmd.AddCommand(certCreateCmd)
	certCreateCmd.Flags().BoolVarP(&passwordStdin, "password-stdin", "", false,
		"read the keystore password from stdin")
}
