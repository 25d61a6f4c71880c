// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package hostsfile

import (
	"fmt"
	"strings"

	"github.com/srl-labs/pkilab/constants"
)

// Entry maps an address to a host name.
type Entry struct {
	ip   string
	name string
}

// NewEntry returns an Entry for ip and name.
func NewEntry(ip, name string) *Entry {
	return &Entry{ip: ip, name: name}
}

// NewLoopbackEntry maps name to the loopback address.
func NewLoopbackEntry(name string) *Entry {
	return NewEntry(constants.LoopbackAddress, name)
}

// String renders the entry as a single hosts file line without a line break.
func (e *Entry) String() string {
	return e.ip + constants.HostEntrySeparator + e.name
}

// ParseEntry parses a single hosts file line.
func ParseEntry(line string) (*Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, fmt.Errorf("invalid host entry %q", line)
	}
	return NewEntry(fields[0], fields[1]), nil
}

func (e *Entry) IP() string { return e.ip }

func (e *Entry) Name() string { return e.name }
