// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package constants

import "os"

const (
	// Pkilab is the name of the command.
	Pkilab = "pkilab"

	// PermissionsDirDefault is used for PKI directories.
	PermissionsDirDefault os.FileMode = 0o755
	// PermissionsFileDefault is used for rendered config files.
	PermissionsFileDefault os.FileMode = 0o644
	// PermissionsSecret is used for files embedding secret material.
	PermissionsSecret os.FileMode = 0o600

	// LoopbackAddress is the address host registrations resolve to.
	LoopbackAddress = "127.0.0.1"
	// HostEntrySeparator separates the address from the domain in a host registration.
	HostEntrySeparator = "    "

	// MinPassphraseLength is the shortest keystore passphrase keytool accepts.
	MinPassphraseLength = 6
)

const (
	FormatJSON  = "json"
	FormatTable = "table"
)
