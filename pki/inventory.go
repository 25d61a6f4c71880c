// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package pki

import (
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/cert"
	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/store"
	"github.com/srl-labs/pkilab/utils"
)

// Status describes a PKI found in the store.
type Status struct {
	Name string
	// Complete is true when all trust anchor files exist and bootstrap finished.
	Complete bool
	// Missing lists absent trust anchor files.
	Missing []string
	Root    *x509.Certificate
	// LastSerial is the serial of the most recently signed server certificate, nil before the first issue.
	LastSerial *big.Int
	Servers    []*ServerStatus
}

// ServerStatus describes a server certificate issued under a PKI.
type ServerStatus struct {
	Domain       string
	Cert         *x509.Certificate
	KeystorePath string
	// KeystoreSize is zero when no keystore exists.
	KeystoreSize int64
}

// List returns the status of every PKI in the store.
func (m *Manager) List() ([]*Status, error) {
	names, err := m.store.ListPKIs()
	if err != nil {
		return nil, err
	}

	result := make([]*Status, 0, len(names))
	for _, n := range names {
		s, err := m.Status(n)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// Status returns the status of the named PKI. Unparsable certificates are logged and left nil.
func (m *Manager) Status(name string) (*Status, error) {
	p := m.store.PKI(name)
	if !utils.DirExists(p.Dir()) {
		return nil, fmt.Errorf("PKI %s: %w", name, pkierrors.ErrFileNotFound)
	}

	s := &Status{Name: name}
	if err := store.RequireFiles(pkierrors.ErrMissingTrustAnchor, p.TrustAnchorFiles()...); err != nil {
		if mfe, ok := err.(*pkierrors.MissingFilesError); ok {
			s.Missing = mfe.Files
		}
	}
	s.Complete = len(s.Missing) == 0 && !m.Incomplete(name)

	if c, err := cert.NewCertificateFromFile(p.RootCert(), "", ""); err == nil {
		if s.Root, err = c.X509(); err != nil {
			log.Debugf("PKI %s: %v", name, err)
		}
	}

	serial, err := readSerial(p.Serial())
	if err != nil {
		log.Debugf("PKI %s: %v", name, err)
	}
	s.LastSerial = serial

	domains, err := m.store.ListServers(name)
	if err != nil {
		return nil, err
	}
	for _, d := range domains {
		ss := &ServerStatus{Domain: d, KeystorePath: p.Keystore(d)}
		if c, err := cert.NewCertificateFromFile(p.ServerCert(d), "", ""); err == nil {
			if ss.Cert, err = c.X509(); err != nil {
				log.Debugf("server %s: %v", d, err)
			}
		}
		if fi, err := os.Stat(p.Keystore(d)); err == nil {
			ss.KeystoreSize = fi.Size()
		}
		s.Servers = append(s.Servers, ss)
	}

	return s, nil
}

// readSerial parses the hex serial openssl keeps next to the root certificate.
// A missing file yields nil without error.
func readSerial(path string) (*big.Int, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(string(b)), 16)
	if !ok {
		return nil, fmt.Errorf("malformed serial file %s", path)
	}
	return v, nil
}

// VerifyResult is the outcome of verifying one server certificate.
type VerifyResult struct {
	Domain string
	Err    error
}

// Verify checks the root key matches the root certificate and every issued
// server certificate chains to the root and is valid for its domain at now.
// An error is returned when the root itself cannot be verified.
func (m *Manager) Verify(name string, now time.Time) ([]VerifyResult, error) {
	p := m.store.PKI(name)

	if err := store.RequireFiles(pkierrors.ErrMissingTrustAnchor, p.RootCert(), p.RootKey()); err != nil {
		return nil, fmt.Errorf("PKI %s: %w", name, err)
	}

	root, err := cert.NewCertificateFromFile(p.RootCert(), p.RootKey(), p.CSR())
	if err != nil {
		return nil, err
	}

	ca := cert.NewCA()
	if err := ca.SetCACert(root); err != nil {
		return nil, err
	}
	if err := ca.CheckKeyPair(); err != nil {
		return nil, fmt.Errorf("PKI %s: %w", name, err)
	}
	if len(root.Csr) > 0 {
		if _, err := cert.ParseCSRPEM(root.Csr); err != nil {
			return nil, fmt.Errorf("PKI %s: %w", name, err)
		}
	}

	domains, err := m.store.ListServers(name)
	if err != nil {
		return nil, err
	}

	results := make([]VerifyResult, 0, len(domains))
	for _, d := range domains {
		r := VerifyResult{Domain: d}
		leaf, err := cert.NewCertificateFromFile(p.ServerCert(d), "", "")
		if err == nil {
			var c *x509.Certificate
			if c, err = leaf.X509(); err == nil {
				err = ca.VerifyLeaf(c, d, now)
			}
		}
		if err == nil && !utils.FileExists(p.Keystore(d)) {
			err = fmt.Errorf("%w: %s", pkierrors.ErrFileNotFound, p.Keystore(d))
		}
		r.Err = err
		results = append(results, r)
	}

	return results, nil
}
