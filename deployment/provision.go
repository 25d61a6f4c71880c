// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package deployment

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/docker/go-connections/nat"
	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/constants"
	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/hostsfile"
	"github.com/srl-labs/pkilab/store"
	"github.com/srl-labs/pkilab/templates"
	"github.com/srl-labs/pkilab/utils"
)

// ParsePort validates a host port in the range 1-65535.
func ParsePort(port string) (int, error) {
	p, err := nat.ParsePort(port)
	if err != nil || p == 0 {
		return 0, fmt.Errorf("%w: invalid https port %q", pkierrors.ErrIncorrectInput, port)
	}
	return p, nil
}

// Provision writes the compose definition and host record of deployment name.
//
// The deployment directory is reused when present, and both files are
// overwritten. Whether the PKI and the server keystore exist is not
// checked; a missing keystore surfaces when the deployment is started.
func (m *Manager) Provision(ctx context.Context, name, httpsPort, pkiName, domain, passphrase string) error {
	if err := store.ValidateName("deployment", name); err != nil {
		return err
	}
	if err := store.ValidateName("pki", pkiName); err != nil {
		return err
	}
	if err := store.ValidateName("domain", domain); err != nil {
		return err
	}
	port, err := ParsePort(httpsPort)
	if err != nil {
		return err
	}
	if err := utils.ValidatePassphrase(passphrase, constants.MinPassphraseLength); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pkiRoot, err := filepath.Abs(m.store.PKIRoot)
	if err != nil {
		return err
	}

	d := m.store.Deployment(name)

	if _, err := utils.CreateDirectory(m.store.DeploymentRoot, constants.PermissionsDirDefault); err != nil {
		return err
	}
	created, err := utils.CreateDirectory(d.Dir(), constants.PermissionsDirDefault)
	if err != nil {
		return err
	}
	if !created {
		log.Infof("deployment %s exists, its definition will be overwritten", name)
	}

	vars := templates.Vars{
		constants.VarHTTPSPortBind: fmt.Sprint(port),
		constants.VarKeystorePass:  passphrase,
		constants.VarPKIName:       pkiName,
		constants.VarPKIRoot:       pkiRoot,
		constants.VarDomainName:    domain,
	}

	// the compose definition embeds the passphrase
	if err := m.renderer.RenderToFile(constants.ComposeTemplate, vars, d.Compose(), constants.PermissionsSecret); err != nil {
		return err
	}

	if err := utils.WriteFileWithMode(d.HostAdditions(), hostsfile.NewLoopbackEntry(domain).String(),
		constants.PermissionsFileDefault); err != nil {
		return err
	}

	log.Infof("Deployment %s provisioned at %s", name, d.Dir())

	return nil
}
