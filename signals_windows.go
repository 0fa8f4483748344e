// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

//go:build windows

package beanq

import (
	"os"
	"os/signal"
)

// waitForSignals blocks until an interrupt, shutting the server down.
// Windows has no SIGTSTP equivalent in os/signal, so drain mode is only
// reachable on this platform via Server.Stop called directly.
func (srv *Server) waitForSignals() {
	srv.logger.Info("listening for signals...")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	<-sigs
}
