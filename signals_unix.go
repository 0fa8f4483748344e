// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

//go:build !windows

package beanq

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// waitForSignals blocks until SIGTERM or SIGINT, shutting the server down
// fully. SIGTSTP instead puts the server into drain mode (Stop) and keeps
// waiting, matching beanstalkd's own SIGUSR1-free convention of leaving
// drain-vs-shutdown to distinct signals.
func (srv *Server) waitForSignals() {
	srv.logger.Info("listening for signals...")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	for {
		sig := <-sigs
		if sig == unix.SIGTSTP {
			srv.Stop()
			continue
		}
		break
	}
}
