// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package deployment provisions and activates container deployments that
// serve a keystore issued by the pki package.
package deployment

import (
	"errors"

	"github.com/srl-labs/pkilab/exec"
	"github.com/srl-labs/pkilab/hostsfile"
	"github.com/srl-labs/pkilab/store"
	"github.com/srl-labs/pkilab/templates"
)

// DefaultComposeCommand is run in the deployment directory to start it.
const DefaultComposeCommand = "docker-compose up"

// Manager provisions and activates deployments.
type Manager struct {
	store          *store.Store
	renderer       *templates.Renderer
	runner         exec.Runner
	hostsFile      string
	composeCommand string
	onTransition   func(name string, s State)
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

// WithRunner sets the process runner the compose command is started with.
func WithRunner(r exec.Runner) ManagerOption {
	return func(m *Manager) error {
		m.runner = r
		return nil
	}
}

// WithHostsFile sets the name-resolution file records are registered in.
func WithHostsFile(path string) ManagerOption {
	return func(m *Manager) error {
		if path == "" {
			return errors.New("hosts file path is empty")
		}
		m.hostsFile = path
		return nil
	}
}

// WithComposeCommand sets the command starting a deployment, split into words with shell rules.
func WithComposeCommand(cmd string) ManagerOption {
	return func(m *Manager) error {
		if _, err := exec.NewExecCmdFromString(cmd); err != nil {
			return err
		}
		m.composeCommand = cmd
		return nil
	}
}

// WithTransitionHook registers f to be called on every activation state change.
func WithTransitionHook(f func(name string, s State)) ManagerOption {
	return func(m *Manager) error {
		m.onTransition = f
		return nil
	}
}

// NewManager returns a Manager. A store is required.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		renderer:       templates.NewRenderer(""),
		hostsFile:      hostsfile.DefaultPath,
		composeCommand: DefaultComposeCommand,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.store == nil {
		return nil, errors.New("deployment manager requires a store")
	}
	if m.runner == nil {
		m.runner = exec.NewLocalRunner(0)
	}

	return m, nil
}
