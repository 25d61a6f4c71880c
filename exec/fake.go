// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package exec

import (
	"context"
	"sync"
)

// FakeRunner is a Runner that records the commands it is given and
// delegates their effect to Handler. It never starts a process.
type FakeRunner struct {
	// Handler simulates the command. A nil Handler succeeds with an empty result.
	Handler func(ctx context.Context, cmd *ExecCmd) (*ExecResult, error)

	m     sync.Mutex
	calls []*ExecCmd
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd *ExecCmd) (*ExecResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	f.m.Lock()
	f.calls = append(f.calls, cmd)
	f.m.Unlock()

	if f.Handler == nil {
		return NewExecResult(cmd), nil
	}

	res, err := f.Handler(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res == nil {
		res = NewExecResult(cmd)
	}
	return res, res.Err()
}

// Calls returns the commands run so far.
func (f *FakeRunner) Calls() []*ExecCmd {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]*ExecCmd(nil), f.calls...)
}
