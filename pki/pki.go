// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package pki bootstraps trust anchors and issues server certificates under
// them. All cryptographic work is delegated to openssl and keytool, invoked
// through an exec.Runner.
package pki

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/exec"
	"github.com/srl-labs/pkilab/store"
	"github.com/srl-labs/pkilab/templates"
)

// Manager runs the PKI lifecycle operations against a store.
type Manager struct {
	store    *store.Store
	renderer *templates.Renderer
	runner   exec.Runner
	toolkit  *OpenSSLToolkit
}

// ManagerOption configures a Manager.
type ManagerOption func(m *Manager) error

// WithStore sets the filesystem store.
func WithStore(s *store.Store) ManagerOption {
	return func(m *Manager) error {
		m.store = s
		return nil
	}
}

// WithRenderer sets the template renderer.
func WithRenderer(r *templates.Renderer) ManagerOption {
	return func(m *Manager) error {
		m.renderer = r
		return nil
	}
}

// WithRunner sets the process runner.
func WithRunner(r exec.Runner) ManagerOption {
	return func(m *Manager) error {
		m.runner = r
		return nil
	}
}

// WithToolkit sets the openssl/keytool invocation builder.
func WithToolkit(t *OpenSSLToolkit) ManagerOption {
	return func(m *Manager) error {
		if err := t.Validate(); err != nil {
			return err
		}
		m.toolkit = t
		return nil
	}
}

// NewManager returns a Manager. A store is required.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		renderer: templates.NewRenderer(""),
		toolkit:  NewOpenSSLToolkit("openssl", "keytool", 3650, 365),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.store == nil {
		return nil, errors.New("pki manager requires a store")
	}
	if m.runner == nil {
		m.runner = exec.NewLocalRunner(0)
	}

	return m, nil
}

// run executes cmd in dir and maps a failed invocation to a ToolError.
func (m *Manager) run(ctx context.Context, dir string, cmd *exec.ExecCmd) (*exec.ExecResult, error) {
	log.Debugf("executing %q in %s", cmd.GetCmdString(), dir)
	res, err := m.runner.Run(ctx, cmd.WithDir(dir))
	if err != nil {
		return res, err
	}
	return res, res.Err()
}
