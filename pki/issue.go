// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package pki

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/constants"
	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/store"
	"github.com/srl-labs/pkilab/templates"
	"github.com/srl-labs/pkilab/utils"
)

// Issue signs a server certificate for domain under the named PKI and
// packages it into servers/<domain>/keystore.jks, protected by passphrase.
//
// The four trust anchor files must exist; nothing is regenerated. Issuing
// again for the same domain overwrites the previous certificate and keystore.
// The passphrase only ever reaches openssl and keytool through their
// environment.
func (m *Manager) Issue(ctx context.Context, pkiName, domain, passphrase string) error {
	if err := store.ValidateName("pki", pkiName); err != nil {
		return err
	}
	if err := store.ValidateName("domain", domain); err != nil {
		return err
	}
	if err := utils.ValidatePassphrase(passphrase, constants.MinPassphraseLength); err != nil {
		return err
	}

	p := m.store.PKI(pkiName)

	if err := store.RequireFiles(pkierrors.ErrMissingTrustAnchor, p.TrustAnchorFiles()...); err != nil {
		return fmt.Errorf("PKI %s: %w", pkiName, err)
	}
	if m.Incomplete(pkiName) {
		return fmt.Errorf("PKI %s: %w: bootstrap did not complete, see %s",
			pkiName, pkierrors.ErrMissingTrustAnchor, p.IncompleteMarker())
	}

	if _, err := utils.CreateDirectory(p.ServersDir(), constants.PermissionsDirDefault); err != nil {
		return err
	}
	created, err := utils.CreateDirectory(p.ServerDir(domain), constants.PermissionsDirDefault)
	if err != nil {
		return err
	}
	if !created {
		log.Warnf("%s is already in use, the certificate for %s will be re-issued", p.ServerDir(domain), domain)
	}

	workDir := p.ServerDir(domain)
	log.Infof("Generating server certificates at %s", workDir)

	err = m.renderer.RenderToFile(constants.CertTemplate,
		templates.Vars{constants.VarServerDomain: domain},
		p.CertConfig(domain), constants.PermissionsFileDefault)
	if err != nil {
		return err
	}

	if _, err := m.run(ctx, workDir, m.toolkit.SignCmd(pkiName, domain)); err != nil {
		return fmt.Errorf("signing certificate for %s: %w", domain, err)
	}

	if err := m.packageKeystore(ctx, p, domain, passphrase); err != nil {
		return err
	}

	log.Infof("Done generating server certificates at %s", workDir)

	return nil
}

// packageKeystore exports the leaf credentials into PKCS#12 and converts them into a Java keystore.
// The intermediate PKCS#12 bundle never outlives this call.
func (m *Manager) packageKeystore(ctx context.Context, p *store.PKIPaths, domain, passphrase string) error {
	workDir := p.ServerDir(domain)

	defer func() {
		if err := utils.RemoveFileIfExists(p.PKCS12(domain)); err != nil {
			log.Errorf("failed removing intermediate keystore %s: %v", p.PKCS12(domain), err)
		}
	}()

	if _, err := m.run(ctx, workDir, m.toolkit.PKCS12Cmd(p.Name(), domain, passphrase)); err != nil {
		return fmt.Errorf("exporting PKCS#12 keystore for %s: %w", domain, err)
	}

	// keytool merges into an existing keystore, which fails on a changed passphrase
	if utils.FileExists(p.Keystore(domain)) {
		log.Debugf("removing previous keystore %s", p.Keystore(domain))
		if err := os.Remove(p.Keystore(domain)); err != nil {
			return err
		}
	}

	if _, err := m.run(ctx, workDir, m.toolkit.JKSCmd(domain, passphrase)); err != nil {
		return fmt.Errorf("converting keystore for %s: %w", domain, err)
	}

	fi, err := os.Stat(p.Keystore(domain))
	if err != nil || fi.Size() == 0 {
		return fmt.Errorf("%w: keytool did not produce %s", pkierrors.ErrExternalToolFailure, p.Keystore(domain))
	}

	return nil
}
