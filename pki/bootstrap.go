// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package pki

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/constants"
	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/store"
	"github.com/srl-labs/pkilab/templates"
	"github.com/srl-labs/pkilab/utils"
)

// Bootstrap creates the trust anchor of a new PKI: root key, self-signed root
// certificate, service key and the signing request derived from it.
//
// The PKI directory must not exist. Its presence is the only guard against
// re-creation, so a failed bootstrap leaves the directory behind with an
// incomplete marker rather than removing it.
func (m *Manager) Bootstrap(ctx context.Context, name string) error {
	if err := store.ValidateName("pki", name); err != nil {
		return err
	}

	p := m.store.PKI(name)
	log.Infof("Generating root certificates at %s", p.Dir())

	if err := store.RequireAbsent(p.Dir()); err != nil {
		return fmt.Errorf("PKI with the name %s: %w", name, err)
	}

	if _, err := utils.CreateDirectory(m.store.PKIRoot, constants.PermissionsDirDefault); err != nil {
		return err
	}

	if err := os.Mkdir(p.Dir(), constants.PermissionsDirDefault); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("PKI with the name %s: %w: %s", name, pkierrors.ErrAlreadyExists, p.Dir())
		}
		return err
	}

	if err := markIncomplete(p, "bootstrap in progress"); err != nil {
		return err
	}

	if err := m.bootstrap(ctx, p); err != nil {
		log.Errorf("failed generating root certificates for %s, leaving %s marked incomplete", name, p.Dir())
		if merr := markIncomplete(p, err.Error()); merr != nil {
			log.Warnf("failed updating %s: %v", p.IncompleteMarker(), merr)
		}
		return fmt.Errorf("failed bootstrapping PKI %s: %w", name, err)
	}

	if err := os.Remove(p.IncompleteMarker()); err != nil {
		return err
	}

	log.Infof("Done generating root certificates at %s", p.Dir())

	return nil
}

func (m *Manager) bootstrap(ctx context.Context, p *store.PKIPaths) error {
	name := p.Name()

	if _, err := m.run(ctx, p.Dir(), m.toolkit.RootCertCmd(name)); err != nil {
		return fmt.Errorf("root certificate: %w", err)
	}

	if _, err := m.run(ctx, p.Dir(), m.toolkit.ServiceKeyCmd(name)); err != nil {
		return fmt.Errorf("service key: %w", err)
	}

	err := m.renderer.RenderToFile(constants.CSRTemplate,
		templates.Vars{constants.VarPKIName: name},
		p.CSRConfig(), constants.PermissionsFileDefault)
	if err != nil {
		return err
	}

	if _, err := m.run(ctx, p.Dir(), m.toolkit.CSRCmd(name)); err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	// a tool exiting 0 without producing its output still fails the bootstrap
	return store.RequireFiles(pkierrors.ErrMissingTrustAnchor, p.TrustAnchorFiles()...)
}

func markIncomplete(p *store.PKIPaths, reason string) error {
	return utils.CreateFile(p.IncompleteMarker(),
		fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), reason))
}

// Incomplete reports whether the bootstrap of the PKI did not finish.
func (m *Manager) Incomplete(name string) bool {
	return utils.FileExists(m.store.PKI(name).IncompleteMarker())
}
