// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package deployment

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/exec"
	"github.com/srl-labs/pkilab/hostsfile"
	"github.com/srl-labs/pkilab/store"
)

// State is the lifecycle state of an activation.
type State int

const (
	Idle State = iota
	Registering
	Running
	Deregistering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Registering:
		return "registering"
	case Running:
		return "running"
	case Deregistering:
		return "deregistering"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (m *Manager) transition(name string, s State) {
	log.Debugf("deployment %s: %s", name, s)
	if m.onTransition != nil {
		m.onTransition(name, s)
	}
}

// Activate registers the deployment's host record, runs the compose command
// in the foreground and removes the record again once the command exits.
//
// The record is removed on every exit path, including cancellation of ctx
// and panics, and Activate returns only after that. The returned error joins
// the compose command error and the deregistration error.
func (m *Manager) Activate(ctx context.Context, name string) (err error) {
	if err := store.ValidateName("deployment", name); err != nil {
		return err
	}

	d := m.store.Deployment(name)

	if err := store.RequireFiles(pkierrors.ErrMissingDeploymentArtifacts, d.Artifacts()...); err != nil {
		return fmt.Errorf("deployment %s: %w", name, err)
	}

	record, err := os.ReadFile(d.HostAdditions())
	if err != nil {
		return err
	}

	cmd, err := exec.NewExecCmdFromString(m.composeCommand)
	if err != nil {
		return err
	}

	m.transition(name, Registering)
	reg, err := hostsfile.Register(m.hostsFile, string(record))
	if err != nil {
		m.transition(name, Idle)
		return fmt.Errorf("failed registering deployment %s in %s: %w", name, m.hostsFile, err)
	}
	log.Infof("Added %q to %s", reg.Record(), m.hostsFile)

	defer func() {
		m.transition(name, Deregistering)
		if rerr := reg.Release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed removing %q from %s: %w", reg.Record(), m.hostsFile, rerr))
		} else {
			log.Infof("Removed %q from %s", reg.Record(), m.hostsFile)
		}
		m.transition(name, Idle)
	}()

	m.transition(name, Running)
	log.Infof("Starting deployment %s", name)

	_, err = m.runner.Run(ctx, cmd.WithDir(d.Dir()).WithForeground())
	if err != nil {
		return fmt.Errorf("deployment %s: %w", name, err)
	}

	return nil
}
