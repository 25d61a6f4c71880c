// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package constants

// PKI store layout.
const (
	ServersDir         = "servers"
	CSRConfigFilename  = "csr.conf"
	CertConfigFilename = "cert.conf"
	KeystoreFilename   = "keystore.jks"
	PKCS12Filename     = "keystore.pkcs12"
	IncompleteMarker   = ".incomplete"

	CertFileSuffix = ".crt"
	KeyFileSuffix  = ".key"
	CSRFileSuffix  = ".csr"
	// ServiceKeyPrefix prefixes the key the PKI's signing request is derived from.
	ServiceKeyPrefix = "private."
	// SerialFileSuffix is appended by openssl -CAcreateserial to the CA cert basename.
	SerialFileSuffix = ".srl"
)

// Deployment layout.
const (
	ComposeFilename       = "docker-compose.yaml"
	HostAdditionsFilename = "host_additions"
)

// Template names.
const (
	CSRTemplate     = "csr.conf.tmpl"
	CertTemplate    = "cert.conf.tmpl"
	ComposeTemplate = "docker-compose.yaml.tmpl"
)

// Template placeholders.
const (
	VarPKIName       = "PKI_NAME"
	VarPKIRoot       = "PKI_ROOT"
	VarServerDomain  = "SERVER_DOMAIN"
	VarHTTPSPortBind = "HTTPS_PORT_BIND"
	VarKeystorePass  = "KEYSTORE_PASSWORD"
	VarDomainName    = "DOMAIN_NAME"
)
