// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/component"
)

var stop = make(chan os.Signal, 1)

func main() {
	manager := component.Prepare()
	manager.Start()
	graceful(logrus.New(), manager.Stop)
}

func graceful(log *logrus.Logger, that func()) {
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("gracefully stopping...")
	that()
}
