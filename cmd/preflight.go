// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "check openssl and keytool are available",
	Args:  cobra.NoArgs,
	RunE: func(cobraCmd *cobra.Command, _ []string) error {
		m, err := newPKIManager()
		if err != nil {
			return err
		}
		v, err := m.Preflight(cobraCmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s): ok\n", cfg.OpenSSL, v)
		fmt.Printf("%s: ok\n", cfg.Keytool)
		return nil
	},
}
