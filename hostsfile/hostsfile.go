// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package hostsfile adds and removes single-line records in a hosts file.
//
// A record is added with Register, which returns a Registration handle.
// Releasing the handle removes every line equal to the record, so callers
// defer Release right after a successful Register.
package hostsfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/utils"
)

// DefaultPath is the system hosts file.
const DefaultPath = "/etc/hosts"

// Registration is a record added to a hosts file.
type Registration struct {
	path   string
	record string

	once sync.Once
	err  error
}

// Register appends record to the hosts file at path in a single write.
// Stale copies of record left by an earlier run are removed first, so the
// file holds exactly one copy afterwards.
func Register(path, record string) (*Registration, error) {
	record = strings.TrimRight(record, "\r\n")
	if strings.TrimSpace(record) == "" || strings.ContainsAny(record, "\r\n") {
		return nil, fmt.Errorf("host registration must be a single non-empty line, got %q", record)
	}

	if !utils.FileExists(path) {
		err := utils.CreateFile(path, "127.0.0.1\tlocalhost\n")
		if err != nil {
			return nil, err
		}
	}

	// lets make sure to remove the entries of a non-properly stopped deployment
	n, err := Remove(path, record)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Warnf("removed %d stale %q record(s) from %s", n, record, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data := record + "\n"
	if len(content) > 0 && content[len(content)-1] != '\n' {
		data = "\n" + data
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.WriteString(data); err != nil {
		return nil, err
	}

	log.Debugf("added %q to %s", record, path)

	return &Registration{path: path, record: record}, nil
}

// Record returns the registered line.
func (r *Registration) Record() string {
	return r.record
}

// Release removes the record from the hosts file. Only the first call has an effect.
func (r *Registration) Release() error {
	r.once.Do(func() {
		var n int
		n, r.err = Remove(r.path, r.record)
		if r.err == nil {
			log.Debugf("removed %d %q record(s) from %s", n, r.record, r.path)
		}
	})
	return r.err
}

// Count returns the number of lines in the hosts file equal to record.
func Count(path, record string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	_, n := filter(content, record)
	return n, nil
}

// Remove deletes every line equal to record from the hosts file and returns how many were removed.
// The file is replaced atomically when possible.
func Remove(path, record string) (int, error) {
	record = strings.TrimRight(record, "\r\n")

	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	output, n := filter(content, record)
	if n == 0 {
		return 0, nil
	}

	return n, replace(path, output, fi.Mode().Perm())
}

// filter drops lines equal to record, ignoring trailing whitespace.
func filter(content []byte, record string) ([]byte, int) {
	var out bytes.Buffer
	removed := 0

	lines := bytes.SplitAfter(content, []byte("\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if strings.TrimRight(string(line), " \t\r\n") == record {
			removed++
			continue
		}
		out.Write(line)
	}

	return out.Bytes(), removed
}

// replace writes data to a temp file next to path and renames it over path.
// A hosts file bind-mounted into a container cannot be renamed over, in that
// case the file is rewritten in place.
func replace(path string, data []byte, perm os.FileMode) error {
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.pkilab-%s.tmp", filepath.Base(path), uuid.NewString()))

	err := os.WriteFile(tmp, data, perm)
	if err == nil {
		err = os.Rename(tmp, path)
		if err == nil {
			return nil
		}
		_ = os.Remove(tmp)
	}

	log.Debugf("atomic replace of %s failed (%v), rewriting in place", path, err)

	return rewrite(path, data)
}

func rewrite(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644) // skipcq: GSC-G302
	if err != nil {
		return err
	}

	err = f.Truncate(0)
	if err == nil {
		_, err = f.Seek(0, 0)
	}
	if err == nil {
		_, err = f.Write(data)
	}

	return errors.Join(err, f.Close())
}
