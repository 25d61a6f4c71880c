// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package constants

const (
	// EnvPrefix prefixes every environment variable read by the config package.
	EnvPrefix = "PKILAB_"

	// EnvKeystorePass carries the keystore passphrase into openssl and keytool.
	// It is set on the child process only.
	EnvKeystorePass = "PKILAB_KEYSTORE_PASS"
)
