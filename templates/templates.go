// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package templates renders the configuration files pkilab writes to disk:
// the openssl CSR and certificate extension configs and the deployment
// compose definition.
//
// The default templates are embedded in the binary. A templates directory
// can override any of them by providing a file with the same name.
// Template text may reference environment variables with ${VAR} or
// ${VAR:-default}; they are expanded before the template is executed.
package templates

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/a8m/envsubst"
	"github.com/hairyhenderson/gomplate/v3"
	"github.com/hairyhenderson/gomplate/v3/data"
	log "github.com/sirupsen/logrus"

	"github.com/srl-labs/pkilab/utils"
)

//go:embed *.tmpl
var defaultTemplates embed.FS

// Vars maps placeholder names to their values.
type Vars map[string]string

// Renderer renders named templates.
type Renderer struct {
	dir string
}

// NewRenderer returns a Renderer looking up templates in dir first, then in the embedded defaults.
// An empty dir uses the embedded defaults only.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Load returns the raw text of the named template.
func (r *Renderer) Load(name string) ([]byte, error) {
	if r.dir != "" {
		p := filepath.Join(r.dir, name)
		if utils.FileExists(p) {
			log.Debugf("using template %s", p)
			return os.ReadFile(p)
		}
	}
	b, err := defaultTemplates.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("template %q not found: %w", name, err)
	}
	return b, nil
}

// Render executes the named template with vars.
// Referencing a placeholder that is not in vars is an error.
func (r *Renderer) Render(name string, vars Vars) (string, error) {
	b, err := r.Load(name)
	if err != nil {
		return "", err
	}

	// expand env vars in the template text, unset vars expand to empty strings
	b, err = envsubst.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to expand environment in template %q: %w", name, err)
	}

	t, err := template.New(name).
		Option("missingkey=error").
		Funcs(gomplate.CreateFuncs(context.Background(), new(data.Data))).
		Funcs(funcs).
		Parse(string(b))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := t.Execute(buf, map[string]string(vars)); err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", name, err)
	}

	return buf.String(), nil
}

// RenderToFile renders the named template into path with the given mode.
func (r *Renderer) RenderToFile(name string, vars Vars, path string, mode os.FileMode) error {
	s, err := r.Render(name, vars)
	if err != nil {
		return err
	}
	log.Debugf("writing rendered %s to %s", name, path)
	return utils.WriteFileWithMode(path, s, mode)
}

var funcs = template.FuncMap{
	"composeEscape": composeEscape,
}

// composeEscape escapes compose variable interpolation.
func composeEscape(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
