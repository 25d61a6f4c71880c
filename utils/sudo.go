// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package utils

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	ROOT_UID = 0
	NOMODIFY = -1
)

// overridden in tests.
var (
	getresuid = unix.Getresuid
	setresuid = unix.Setresuid
)

// CheckAndGetRootPrivs returns an error unless the process runs as root or
// carries a saved root UID. In the latter case the effective UID is raised
// to root, so the caller can write root-owned files afterwards.
func CheckAndGetRootPrivs() error {
	_, euid, suid := getresuid()
	if euid != ROOT_UID && suid != ROOT_UID {
		return fmt.Errorf("this pkilab command requires root privileges or root via SUID to run, effective UID: %v SUID: %v", euid, suid)
	}

	if euid == ROOT_UID {
		log.Debugf("already running as root, skipping root privilege escalation")
		return nil
	}

	if err := setresuid(NOMODIFY, ROOT_UID, ROOT_UID); err != nil {
		return fmt.Errorf("failed to obtain root privileges: %w", err)
	}
	log.Debugf("obtained root privileges, SUID: %v", suid)

	return nil
}
