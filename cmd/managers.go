// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"fmt"
	"os"

	"github.com/srl-labs/pkilab/deployment"
	"github.com/srl-labs/pkilab/exec"
	"github.com/srl-labs/pkilab/pki"
	"github.com/srl-labs/pkilab/store"
	"github.com/srl-labs/pkilab/templates"
	"github.com/srl-labs/pkilab/utils"
)

var passwordStdin bool

func newStore() *store.Store {
	return store.New(cfg.PKIRoot, cfg.DeploymentRoot)
}

func newRunner() exec.Runner {
	return exec.NewLocalRunner(cfg.GracePeriod)
}

func newPKIManager() (*pki.Manager, error) {
	return pki.NewManager(
		pki.WithStore(newStore()),
		pki.WithRenderer(templates.NewRenderer(cfg.TemplatesDir)),
		pki.WithRunner(newRunner()),
		pki.WithToolkit(pki.NewOpenSSLToolkit(cfg.OpenSSL, cfg.Keytool, cfg.RootDays, cfg.LeafDays)),
	)
}

func newDeploymentManager() (*deployment.Manager, error) {
	return deployment.NewManager(
		deployment.WithStore(newStore()),
		deployment.WithRenderer(templates.NewRenderer(cfg.TemplatesDir)),
		deployment.WithRunner(newRunner()),
		deployment.WithHostsFile(cfg.HostsFile),
		deployment.WithComposeCommand(cfg.ComposeCommand),
	)
}

// readPassphrase reads the keystore passphrase from stdin when --password-stdin
// is set, prompts for it otherwise.
func readPassphrase() (string, error) {
	if passwordStdin {
		return utils.ReadPasswordFromReader(os.Stdin)
	}
	if !utils.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("stdin is not a terminal, use --password-stdin to pass the keystore password")
	}
	return utils.ReadPasswordFromTerminal("Keystore password (at least 6 characters): ")
}
