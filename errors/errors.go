// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFileNotFound is returned when a file is not found.
var ErrFileNotFound = errors.New("file not found")

// ErrIncorrectInput is returned when the user input is incorrect.
var ErrIncorrectInput = errors.New("incorrect input")

// ErrAlreadyExists is returned when a PKI is bootstrapped into a directory that is already present.
var ErrAlreadyExists = errors.New("already exists")

// ErrMissingTrustAnchor is returned when a certificate is issued under a PKI
// that lacks one or more of its root artifacts.
var ErrMissingTrustAnchor = errors.New("missing trust anchor")

// ErrMissingDeploymentArtifacts is returned when a deployment is activated
// before it has been provisioned.
var ErrMissingDeploymentArtifacts = errors.New("missing deployment artifacts")

// ErrExternalToolFailure is returned when an external process exits with a nonzero status.
var ErrExternalToolFailure = errors.New("external tool failure")

// ErrDecryptFailure is reserved for the repository unlock collaborator.
var ErrDecryptFailure = errors.New("decrypt failure")

// MissingFilesError lists the files a precondition expected but did not find.
// Kind is one of the sentinel errors of this package.
type MissingFilesError struct {
	Kind  error
	Files []string
}

func (e *MissingFilesError) Error() string {
	return fmt.Sprintf("%v: missing %s", e.Kind, strings.Join(e.Files, ", "))
}

func (e *MissingFilesError) Unwrap() error {
	return e.Kind
}

// Is reports ErrFileNotFound as well as the error kind.
func (e *MissingFilesError) Is(target error) bool {
	return target == ErrFileNotFound
}
