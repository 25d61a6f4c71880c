// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"fmt"

	gover "github.com/hashicorp/go-version"
	"github.com/spf13/cobra"
)

// Version variables set at build time (e.g., with -ldflags).
var (
	Version = "0.0.0"
	commit  = "none"
	date    = "unknown"
)

const repoUrl = "https://github.com/srl-labs/pkilab"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "show pkilab version",
	// config is not needed to print the version
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Printf("    version: %s\n", Version)
		fmt.Printf("     commit: %s\n", commit)
		fmt.Printf("       date: %s\n", date)
		fmt.Printf("     source: %s\n", repoUrl)
		fmt.Printf(" rel. notes: %s\n", releaseNotesLink(Version))
		return nil
	},
}

// releaseNotesLink returns the release page of a version,
// e.g. for 0.3.1 => .../releases/tag/v0.3.1.
// Versions that do not parse, like development builds, link to the releases list.
func releaseNotesLink(ver string) string {
	v, err := gover.NewVersion(ver)
	if err != nil || v.Equal(gover.Must(gover.NewVersion("0.0.0"))) {
		return repoUrl + "/releases"
	}
	return fmt.Sprintf("%s/releases/tag/v%s", repoUrl, v)
}
