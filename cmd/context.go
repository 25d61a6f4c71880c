// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

var onlyOneSignalHandler = make(chan struct{}) //nolint: gochecknoglobals

// SignalHandledContext returns a context that will be canceled if a SIGINT or SIGTERM is
// received. The process is not terminated: a running deployment is stopped
// through the context and removes its host record before the command returns.
func SignalHandledContext() (context.Context, context.CancelFunc) {
	// panics when called twice, this way there can only be one signal handled context
	close(onlyOneSignalHandler)

	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2) //nolint:mnd

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go watchSignals(sigs, done, cancel)

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
		close(done)
	}
}

// watchSignals cancels on the first signal and logs later ones until done is closed.
func watchSignals(sigs <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc) {
	select {
	case sig := <-sigs:
		log.Warnf("received signal %q, stopping...", sig)
		cancel()
	case <-done:
		return
	}

	for {
		select {
		case sig := <-sigs:
			log.Warnf("received signal %q while stopping, waiting for cleanup to finish", sig)
		case <-done:
			return
		}
	}
}
