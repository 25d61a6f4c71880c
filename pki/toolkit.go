// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package pki

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/srl-labs/pkilab/constants"
	"github.com/srl-labs/pkilab/exec"
)

const (
	rootKeyBits    = "2048"
	serviceKeyBits = "2048"

	// relative location of the PKI dir from servers/<domain>/
	pkiDirFromServer = "../.."
)

// Subject holds the distinguished name attributes of the certificates pkilab issues.
type Subject struct {
	Country          string
	State            string
	Locality         string
	Organization     string
	OrganizationUnit string
}

// DefaultRootSubject is used for trust anchors, CN is <pki>.com.
var DefaultRootSubject = Subject{
	Country:  "UA",
	Locality: "Kiev",
}

// DefaultLeafSubject is used for server certificates, CN is the domain.
var DefaultLeafSubject = Subject{
	Country:          "UA",
	State:            "Kiev Oblast",
	Locality:         "Something",
	Organization:     "Something Corp",
	OrganizationUnit: "IT Dept",
}

// rootDN orders the attributes the way the trust anchor was always created: CN first.
func (s Subject) rootDN(cn string) string {
	dn := "/CN=" + cn
	dn += attr("C", s.Country) + attr("ST", s.State) + attr("L", s.Locality)
	dn += attr("O", s.Organization) + attr("OU", s.OrganizationUnit)
	return dn
}

func (s Subject) leafDN(cn string) string {
	return attr("C", s.Country) + attr("ST", s.State) + attr("L", s.Locality) +
		attr("O", s.Organization) + attr("OU", s.OrganizationUnit) + "/CN=" + cn
}

func attr(k, v string) string {
	if v == "" {
		return ""
	}
	return "/" + k + "=" + v
}

// OpenSSLToolkit builds the openssl and keytool invocations of the PKI lifecycle.
// Every command is meant to run in the directory returned alongside it.
type OpenSSLToolkit struct {
	OpenSSL     string
	Keytool     string
	RootDays    int
	LeafDays    int
	RootSubject Subject
	LeafSubject Subject
}

// NewOpenSSLToolkit returns a toolkit with the default subjects.
func NewOpenSSLToolkit(openssl, keytool string, rootDays, leafDays int) *OpenSSLToolkit {
	return &OpenSSLToolkit{
		OpenSSL:     openssl,
		Keytool:     keytool,
		RootDays:    rootDays,
		LeafDays:    leafDays,
		RootSubject: DefaultRootSubject,
		LeafSubject: DefaultLeafSubject,
	}
}

// Validate checks the validity windows.
func (t *OpenSSLToolkit) Validate() error {
	if t.RootDays <= 0 || t.LeafDays <= 0 {
		return fmt.Errorf("validity periods must be positive, root: %d, leaf: %d", t.RootDays, t.LeafDays)
	}
	if t.LeafDays >= t.RootDays {
		return fmt.Errorf("leaf validity (%d days) must be shorter than root validity (%d days)", t.LeafDays, t.RootDays)
	}
	return nil
}

// RootCertCmd generates the root key and its self-signed certificate.
func (t *OpenSSLToolkit) RootCertCmd(pki string) *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{
		t.OpenSSL, "req", "-x509",
		"-sha256",
		"-days", strconv.Itoa(t.RootDays),
		"-nodes",
		"-newkey", "rsa:" + rootKeyBits,
		"-subj", t.RootSubject.rootDN(pki + ".com"),
		"-keyout", pki + constants.KeyFileSuffix,
		"-out", pki + constants.CertFileSuffix,
	})
}

// ServiceKeyCmd generates the service key the signing request is derived from.
func (t *OpenSSLToolkit) ServiceKeyCmd(pki string) *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{
		t.OpenSSL, "genrsa",
		"-out", constants.ServiceKeyPrefix + pki + constants.KeyFileSuffix,
		serviceKeyBits,
	})
}

// CSRCmd generates the signing request from the service key using the rendered csr.conf.
func (t *OpenSSLToolkit) CSRCmd(pki string) *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{
		t.OpenSSL, "req", "-new",
		"-key", constants.ServiceKeyPrefix + pki + constants.KeyFileSuffix,
		"-out", pki + constants.CSRFileSuffix,
		"-config", constants.CSRConfigFilename,
	})
}

// SignCmd signs the PKI's pending signing request with the root, producing the leaf certificate for domain.
// It runs in servers/<domain>/.
func (t *OpenSSLToolkit) SignCmd(pki, domain string) *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{
		t.OpenSSL, "x509", "-req",
		"-in", filepath.Join(pkiDirFromServer, pki+constants.CSRFileSuffix),
		"-CA", filepath.Join(pkiDirFromServer, pki+constants.CertFileSuffix),
		"-CAkey", filepath.Join(pkiDirFromServer, pki+constants.KeyFileSuffix),
		"-subj", t.LeafSubject.leafDN(domain),
		"-CAcreateserial",
		"-out", domain + constants.CertFileSuffix,
		"-days", strconv.Itoa(t.LeafDays),
		"-sha256",
		"-extfile", constants.CertConfigFilename,
	})
}

// PKCS12Cmd bundles the service key, the leaf certificate and the root certificate.
// The passphrase is read by openssl from the environment.
func (t *OpenSSLToolkit) PKCS12Cmd(pki, domain, passphrase string) *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{
		t.OpenSSL, "pkcs12", "-export",
		"-out", constants.PKCS12Filename,
		"-passout", "env:" + constants.EnvKeystorePass,
		"-inkey", filepath.Join(pkiDirFromServer, constants.ServiceKeyPrefix+pki+constants.KeyFileSuffix),
		"-in", domain + constants.CertFileSuffix,
		"-certfile", filepath.Join(pkiDirFromServer, pki+constants.CertFileSuffix),
		"-name", domain,
	}).WithSecret(constants.EnvKeystorePass, passphrase)
}

// JKSCmd converts the PKCS#12 bundle into a Java keystore under the same passphrase and alias.
func (t *OpenSSLToolkit) JKSCmd(domain, passphrase string) *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{
		t.Keytool, "-importkeystore",
		"-srckeystore", constants.PKCS12Filename,
		"-srcstorepass:env", constants.EnvKeystorePass,
		"-srcstoretype", "pkcs12",
		"-srcalias", domain,
		"-deststoretype", "jks",
		"-destkeystore", constants.KeystoreFilename,
		"-deststorepass:env", constants.EnvKeystorePass,
		"-destalias", domain,
		"-noprompt",
	}).WithSecret(constants.EnvKeystorePass, passphrase)
}

// VersionCmd reports the openssl version.
func (t *OpenSSLToolkit) VersionCmd() *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{t.OpenSSL, "version"})
}

// KeytoolCheckCmd checks keytool can be run.
func (t *OpenSSLToolkit) KeytoolCheckCmd() *exec.ExecCmd {
	return exec.NewExecCmdFromSlice([]string{t.Keytool, "-help"})
}
