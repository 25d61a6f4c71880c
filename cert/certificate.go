// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cert

import (
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/utils"
)

// Certificate stores the combination of Cert and Key along with the CSR if available.
type Certificate struct {
	Cert []byte
	Key  []byte
	Csr  []byte
}

// NewCertificateFromFile creates a new Certificate by loading cert, key and csr (if exists) from respecting files.
// An empty keyFilePath or csrFilePath skips that part.
func NewCertificateFromFile(certFilePath, keyFilePath, csrFilePath string) (*Certificate, error) {
	cert := &Certificate{}

	// Cert
	_, err := os.Stat(certFilePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed loading cert file")
	}
	cert.Cert, err = utils.ReadFileContent(certFilePath)
	if err != nil {
		return nil, err
	}

	// Key
	if keyFilePath != "" {
		_, err = os.Stat(keyFilePath)
		if err != nil {
			return nil, errors.Wrap(err, "failed loading key file")
		}
		cert.Key, err = utils.ReadFileContent(keyFilePath)
		if err != nil {
			return nil, err
		}
	}

	// CSR
	// The CSR might not be there, which is not an issue, just skip it
	if csrFilePath != "" {
		_, err = os.Stat(csrFilePath)
		if err != nil {
			log.Debugf("failed loading csr %s, continuing anyways", csrFilePath)
		} else {
			cert.Csr, err = utils.ReadFileContent(csrFilePath)
			if err != nil {
				return nil, err
			}
		}
	}

	return cert, nil
}

// X509 parses the PEM encoded certificate.
func (c *Certificate) X509() (*x509.Certificate, error) {
	return ParseCertificatePEM(c.Cert)
}

// ParseCertificatePEM parses the first CERTIFICATE block of data.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no PEM certificate found")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "failed parsing certificate")
		}
		return c, nil
	}
}

// ParseCSRPEM parses a PEM encoded certificate signing request.
func ParseCSRPEM(data []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM certificate request found")
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed parsing certificate request")
	}
	return csr, csr.CheckSignature()
}
