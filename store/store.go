// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package store represents PKIs and deployments as a directory tree and
// holds the existence preconditions mutating operations are guarded by.
package store

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"

	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/utils"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_*][A-Za-z0-9._*-]*$`)

// Store is the filesystem state of PKIs and deployments.
type Store struct {
	PKIRoot        string
	DeploymentRoot string
}

// New returns a Store rooted at the given directories.
func New(pkiRoot, deploymentRoot string) *Store {
	return &Store{PKIRoot: pkiRoot, DeploymentRoot: deploymentRoot}
}

// PKI returns the paths of the named PKI.
func (s *Store) PKI(name string) *PKIPaths {
	return NewPKIPaths(s.PKIRoot, name)
}

// Deployment returns the paths of the named deployment.
func (s *Store) Deployment(name string) *DeploymentPaths {
	return NewDeploymentPaths(s.DeploymentRoot, name)
}

// ListPKIs returns the names of all PKI directories, sorted.
func (s *Store) ListPKIs() ([]string, error) {
	return listDirs(s.PKIRoot)
}

// ListServers returns the domains issued under the named PKI, sorted.
func (s *Store) ListServers(pki string) ([]string, error) {
	return listDirs(s.PKI(pki).ServersDir())
}

// ListDeployments returns the names of all deployment directories, sorted.
func (s *Store) ListDeployments() ([]string, error) {
	return listDirs(s.DeploymentRoot)
}

func listDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// ValidateName checks that name can be used as a single directory or file name.
func ValidateName(what, name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "..") || !nameRe.MatchString(name) {
		return fmt.Errorf("%w: invalid %s name %q", pkierrors.ErrIncorrectInput, what, name)
	}
	return nil
}

// RequireAbsent fails with ErrAlreadyExists if anything exists at path.
func RequireAbsent(path string) error {
	if utils.FileOrDirExists(path) {
		return fmt.Errorf("%w: %s", pkierrors.ErrAlreadyExists, path)
	}
	return nil
}

// RequireFiles fails with a *MissingFilesError of the given kind listing every file that does not exist.
func RequireFiles(kind error, files ...string) error {
	var missing []string
	for _, f := range files {
		if !utils.FileExists(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &pkierrors.MissingFilesError{Kind: kind, Files: missing}
	}
	return nil
}
