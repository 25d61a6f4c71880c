// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	pkierrors "github.com/srl-labs/pkilab/errors"
)

// ReadPasswordFromTerminal prompts on stderr and reads a password without echo.
func ReadPasswordFromTerminal(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return string(pass), nil
}

// ReadPasswordFromReader reads the first line of r, used for --password-stdin.
func ReadPasswordFromReader(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ValidatePassphrase enforces the minimum passphrase length.
func ValidatePassphrase(pass string, minLen int) error {
	if len(pass) < minLen {
		return fmt.Errorf("%w: keystore password must be at least %d characters",
			pkierrors.ErrIncorrectInput, minLen)
	}
	return nil
}
