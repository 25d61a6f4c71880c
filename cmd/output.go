// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/srl-labs/pkilab/constants"
	"github.com/srl-labs/pkilab/deployment"
	"github.com/srl-labs/pkilab/pki"
)

// PKIDetails is the listing of one issued server certificate, or of a PKI without any.
type PKIDetails struct {
	PKI          string `json:"pki"`
	Complete     bool   `json:"complete"`
	RootNotAfter string `json:"root_not_after,omitempty"`
	LastSerial   string `json:"last_serial,omitempty"`
	Domain       string `json:"domain,omitempty"`
	NotAfter     string `json:"not_after,omitempty"`
	KeystoreSize int64  `json:"keystore_size,omitempty"`
}

func printPKIs(statuses []*pki.Status, format string, now time.Time) error {
	return writePKIs(os.Stdout, statuses, format, now)
}

func writePKIs(w io.Writer, statuses []*pki.Status, format string, now time.Time) error {
	var details []PKIDetails
	for _, s := range statuses {
		base := PKIDetails{PKI: s.Name, Complete: s.Complete}
		if s.Root != nil {
			base.RootNotAfter = s.Root.NotAfter.UTC().Format(time.RFC3339)
		}
		if s.LastSerial != nil {
			base.LastSerial = fmt.Sprintf("%X", s.LastSerial)
		}
		if len(s.Servers) == 0 {
			details = append(details, base)
			continue
		}
		for _, srv := range s.Servers {
			d := base
			d.Domain = srv.Domain
			d.KeystoreSize = srv.KeystoreSize
			if srv.Cert != nil {
				d.NotAfter = srv.Cert.NotAfter.UTC().Format(time.RFC3339)
			}
			details = append(details, d)
		}
	}

	switch format {
	case constants.FormatJSON:
		return writeJSON(w, details)
	case constants.FormatTable:
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	if len(details) == 0 {
		fmt.Fprintln(w, "no PKIs found")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "PKI", "Status", "Root Expires", "Server", "Expires", "Keystore"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	// merge cells of the same PKI
	table.SetAutoMergeCellsByColumnIndex([]int{1, 2, 3})

	for i, d := range details {
		status := "complete"
		if !d.Complete {
			status = "incomplete"
		}
		keystore := ""
		if d.KeystoreSize > 0 {
			keystore = humanize.Bytes(uint64(d.KeystoreSize))
		} else if d.Domain != "" {
			keystore = "missing"
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			d.PKI,
			status,
			relTime(d.RootNotAfter, now),
			d.Domain,
			relTime(d.NotAfter, now),
			keystore,
		})
	}
	table.Render()

	return nil
}

func printDeployments(infos []*deployment.Info, format string) error {
	return writeDeployments(os.Stdout, infos, format)
}

func writeDeployments(w io.Writer, infos []*deployment.Info, format string) error {
	switch format {
	case constants.FormatJSON:
		return writeJSON(w, infos)
	case constants.FormatTable:
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "no deployments found")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Name", "Domain", "Ports", "Provisioned", "Active"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for i, d := range infos {
		table.Append([]string{
			strconv.Itoa(i + 1),
			d.Name,
			d.Domain,
			strings.Join(d.Ports, ", "),
			strconv.FormatBool(d.Provisioned),
			strconv.FormatBool(d.Active),
		})
	}
	table.Render()

	return nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// relTime renders an RFC 3339 timestamp relative to now, e.g. "in 9 years".
func relTime(ts string, now time.Time) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
