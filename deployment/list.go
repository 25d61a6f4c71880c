// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package deployment

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/srl-labs/pkilab/hostsfile"
	"github.com/srl-labs/pkilab/utils"
)

// Info describes a provisioned deployment.
type Info struct {
	Name string `json:"name"`
	// Domain is empty when the host record is missing or malformed.
	Domain string `json:"domain,omitempty"`
	// Ports are the published port mappings of the compose definition.
	Ports []string `json:"ports,omitempty"`
	// Provisioned is true when every file activation needs exists.
	Provisioned bool `json:"provisioned"`
	// Active is true while the host record is present in the hosts file.
	Active bool `json:"active"`
}

type composeFile struct {
	Services map[string]struct {
		Ports []string `yaml:"ports"`
	} `yaml:"services"`
}

// List returns every deployment in the store.
func (m *Manager) List() ([]*Info, error) {
	names, err := m.store.ListDeployments()
	if err != nil {
		return nil, err
	}

	result := make([]*Info, 0, len(names))
	for _, n := range names {
		d := m.store.Deployment(n)
		info := &Info{Name: n, Provisioned: true}

		for _, f := range d.Artifacts() {
			if !utils.FileExists(f) {
				info.Provisioned = false
			}
		}

		if b, err := os.ReadFile(d.HostAdditions()); err == nil {
			record := strings.TrimSpace(string(b))
			if e, err := hostsfile.ParseEntry(record); err == nil {
				info.Domain = e.Name()
				count, err := hostsfile.Count(m.hostsFile, record)
				if err != nil {
					log.Debugf("deployment %s: %v", n, err)
				}
				info.Active = count > 0
			} else {
				log.Debugf("deployment %s: %v", n, err)
			}
		}

		// the compose file is the secret-bearing one, only its ports are read
		if b, err := os.ReadFile(d.Compose()); err == nil {
			var c composeFile
			if err := yaml.Unmarshal(b, &c); err != nil {
				log.Debugf("deployment %s: %v", n, err)
			}
			for _, s := range c.Services {
				info.Ports = append(info.Ports, s.Ports...)
			}
		}

		result = append(result, info)
	}

	return result, nil
}
