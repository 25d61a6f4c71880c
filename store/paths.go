// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package store

import (
	"path/filepath"

	"github.com/srl-labs/pkilab/constants"
)

// PKIPaths resolves the files of one PKI under the PKI store root.
//
//	<root>/<name>/<name>.key              root private key
//	<root>/<name>/<name>.crt              root self-signed certificate
//	<root>/<name>/private.<name>.key      service key
//	<root>/<name>/<name>.csr              signing request of the service key
//	<root>/<name>/csr.conf
//	<root>/<name>/servers/<domain>/{cert.conf,<domain>.crt,keystore.jks}
type PKIPaths struct {
	root string
	name string
}

// NewPKIPaths returns the paths of PKI name under root.
func NewPKIPaths(root, name string) *PKIPaths {
	return &PKIPaths{root: root, name: name}
}

func (p *PKIPaths) Name() string { return p.name }

func (p *PKIPaths) Dir() string { return filepath.Join(p.root, p.name) }

func (p *PKIPaths) RootKey() string {
	return filepath.Join(p.Dir(), p.name+constants.KeyFileSuffix)
}

func (p *PKIPaths) RootCert() string {
	return filepath.Join(p.Dir(), p.name+constants.CertFileSuffix)
}

func (p *PKIPaths) ServiceKey() string {
	return filepath.Join(p.Dir(), constants.ServiceKeyPrefix+p.name+constants.KeyFileSuffix)
}

func (p *PKIPaths) CSR() string {
	return filepath.Join(p.Dir(), p.name+constants.CSRFileSuffix)
}

func (p *PKIPaths) CSRConfig() string {
	return filepath.Join(p.Dir(), constants.CSRConfigFilename)
}

// Serial is the serial number file openssl creates next to the root certificate.
func (p *PKIPaths) Serial() string {
	return filepath.Join(p.Dir(), p.name+constants.SerialFileSuffix)
}

// IncompleteMarker exists while a bootstrap has not completed.
func (p *PKIPaths) IncompleteMarker() string {
	return filepath.Join(p.Dir(), constants.IncompleteMarker)
}

// TrustAnchorFiles returns the four root artifacts issuance depends on.
func (p *PKIPaths) TrustAnchorFiles() []string {
	return []string{p.RootKey(), p.RootCert(), p.ServiceKey(), p.CSR()}
}

func (p *PKIPaths) ServersDir() string {
	return filepath.Join(p.Dir(), constants.ServersDir)
}

func (p *PKIPaths) ServerDir(domain string) string {
	return filepath.Join(p.ServersDir(), domain)
}

func (p *PKIPaths) ServerCert(domain string) string {
	return filepath.Join(p.ServerDir(domain), domain+constants.CertFileSuffix)
}

func (p *PKIPaths) CertConfig(domain string) string {
	return filepath.Join(p.ServerDir(domain), constants.CertConfigFilename)
}

func (p *PKIPaths) Keystore(domain string) string {
	return filepath.Join(p.ServerDir(domain), constants.KeystoreFilename)
}

func (p *PKIPaths) PKCS12(domain string) string {
	return filepath.Join(p.ServerDir(domain), constants.PKCS12Filename)
}

// DeploymentPaths resolves the files of one deployment under the deployment root.
type DeploymentPaths struct {
	root string
	name string
}

// NewDeploymentPaths returns the paths of deployment name under root.
func NewDeploymentPaths(root, name string) *DeploymentPaths {
	return &DeploymentPaths{root: root, name: name}
}

func (d *DeploymentPaths) Name() string { return d.name }

func (d *DeploymentPaths) Dir() string { return filepath.Join(d.root, d.name) }

func (d *DeploymentPaths) Compose() string {
	return filepath.Join(d.Dir(), constants.ComposeFilename)
}

func (d *DeploymentPaths) HostAdditions() string {
	return filepath.Join(d.Dir(), constants.HostAdditionsFilename)
}

// Artifacts returns the files activation depends on.
func (d *DeploymentPaths) Artifacts() []string {
	return []string{d.Compose(), d.HostAdditions()}
}
