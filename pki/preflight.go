// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package pki

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// MinOpenSSLVersion is the oldest openssl supporting every invocation pkilab builds.
var MinOpenSSLVersion = version.Must(version.NewVersion("1.1.1"))

var versionRe = regexp.MustCompile(`^(\d+(\.\d+)*)`)

// ToolVersion is the parsed `openssl version` output.
type ToolVersion struct {
	Flavor  string // OpenSSL or LibreSSL
	Version *version.Version
}

func (v *ToolVersion) String() string {
	return fmt.Sprintf("%s %s", v.Flavor, v.Version)
}

// ParseOpenSSLVersion parses e.g. "OpenSSL 3.0.13 30 Jan 2024" or "OpenSSL 1.1.1w  11 Sep 2023".
// Letter suffixes of patch releases are ignored.
func ParseOpenSSLVersion(out string) (*ToolVersion, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 {
		return nil, fmt.Errorf("unrecognized openssl version output %q", strings.TrimSpace(out))
	}
	m := versionRe.FindString(fields[1])
	if m == "" {
		return nil, fmt.Errorf("unrecognized openssl version %q", fields[1])
	}
	v, err := version.NewVersion(m)
	if err != nil {
		return nil, err
	}
	return &ToolVersion{Flavor: fields[0], Version: v}, nil
}

// Preflight checks openssl and keytool can be run and openssl is recent enough.
func (m *Manager) Preflight(ctx context.Context) (*ToolVersion, error) {
	res, err := m.run(ctx, "", m.toolkit.VersionCmd())
	if err != nil {
		return nil, fmt.Errorf("openssl is not available: %w", err)
	}

	v, err := ParseOpenSSLVersion(res.Stdout)
	if err != nil {
		return nil, err
	}
	log.Debugf("found %s", v)

	if v.Flavor == "OpenSSL" && v.Version.LessThan(MinOpenSSLVersion) {
		return v, fmt.Errorf("openssl %s is too old, %s or newer is required", v.Version, MinOpenSSLVersion)
	}

	if _, err := m.run(ctx, "", m.toolkit.KeytoolCheckCmd()); err != nil {
		return v, fmt.Errorf("keytool is not available: %w", err)
	}

	return v, nil
}
