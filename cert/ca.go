// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cert

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// CA is the root of a PKI loaded from disk, used to check what pkilab issued under it.
type CA struct {
	key  crypto.PrivateKey
	cert *x509.Certificate
}

// NewCA initializes a Certificate Authority.
func NewCA() *CA {
	return &CA{}
}

// SetCACert sets the CA certificate with the provided certificate and key.
func (ca *CA) SetCACert(cert *Certificate) error {
	var err error

	ca.cert, err = cert.X509()
	if err != nil {
		return err
	}

	if len(cert.Key) == 0 {
		return nil
	}

	// Parse the PrivateKey, PKCS#1 and PKCS#8 are both accepted
	ca.key, err = ssh.ParseRawPrivateKey(cert.Key)
	if err != nil {
		return errors.Wrap(err, "failed parsing CA key")
	}

	return nil
}

// Cert returns the parsed CA certificate.
func (ca *CA) Cert() *x509.Certificate {
	return ca.cert
}

// CheckKeyPair verifies the CA key belongs to the CA certificate and the certificate is self-signed.
func (ca *CA) CheckKeyPair() error {
	if ca.cert == nil || ca.key == nil {
		return errors.New("CA certificate and key must both be set")
	}

	signer, ok := ca.key.(crypto.Signer)
	if !ok {
		return fmt.Errorf("unsupported CA key type %T", ca.key)
	}

	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(ca.cert.PublicKey) {
		return errors.New("CA key does not match CA certificate")
	}

	if err := ca.cert.CheckSignatureFrom(ca.cert); err != nil {
		return errors.Wrap(err, "CA certificate is not self-signed")
	}

	return nil
}

// VerifyLeaf checks that leaf chains to the CA and is valid for dnsName at time now.
func (ca *CA) VerifyLeaf(leaf *x509.Certificate, dnsName string, now time.Time) error {
	roots := x509.NewCertPool()
	roots.AddCert(ca.cert)

	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:       roots,
		DNSName:     dnsName,
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	return err
}
