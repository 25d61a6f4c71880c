// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var outputFormat string

var pkiCmd = &cobra.Command{
	Use:   "pki",
	Short: "manage PKIs (root of trust and signing request)",
}

var pkiInitCmd = &cobra.Command{
	Use:   "init <pki-name>",
	Short: "bootstrap a new PKI",
	Long: "generate the root key and self-signed root certificate of a new PKI " +
		"together with a service key and its signing request",
	Args: cobra.ExactArgs(1),
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		m, err := newPKIManager()
		if err != nil {
			return err
		}
		return m.Bootstrap(cobraCmd.Context(), args[0])
	},
}

var pkiListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "list PKIs and the server certificates issued under them",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		m, err := newPKIManager()
		if err != nil {
			return err
		}
		statuses, err := m.List()
		if err != nil {
			return err
		}
		return printPKIs(statuses, outputFormat, time.Now())
	},
}

var pkiVerifyCmd = &cobra.Command{
	Use:   "verify <pki-name>",
	Short: "verify the root of a PKI and every server certificate issued under it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		m, err := newPKIManager()
		if err != nil {
			return err
		}

		results, err := m.Verify(args[0], time.Now())
		if err != nil {
			return err
		}
		log.Infof("PKI %s: root key matches root certificate", args[0])

		var errs []error
		for _, r := range results {
			if r.Err != nil {
				log.Errorf("server %s: %v", r.Domain, r.Err)
				errs = append(errs, fmt.Errorf("server %s: %w", r.Domain, r.Err))
				continue
			}
			log.Infof("server %s: ok", r.Domain)
		}

		return errors.Join(errs...)
	},
}

func init() {
	pkiCmd.AddCommand(pkiInitCmd, pkiListCmd, pkiVerifyCmd)
	pkiListCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format. One of [table, json]")
}
