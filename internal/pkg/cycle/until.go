// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package cycle

import (
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Limit int

const (
	INFINITY Limit = math.MaxInt32
)

// UntilError retries f every interval until it succeeds or attempts run out.
// The last error is returned to the caller.
func UntilError(f func() error, interval time.Duration, attempts Limit, log *logrus.Logger) error {
	counter := Limit(1)
	if attempts < 1 {
		attempts = 1
	}
	for {
		err := f()
		if err == nil {
			return nil
		}
		if counter >= attempts {
			return err
		}
		log.Errorf("attempt %d of %d failed, retrying: %v", counter, attempts, err)
		counter++
		time.Sleep(interval)
	}
}

// UntilConnectionError retries f on connection-shaped errors only and panics
// on anything else or once attempts are exhausted.
func UntilConnectionError(f func() error, interval time.Duration, attempts Limit, log *logrus.Logger) {
	counter := Limit(1)
	if attempts < 1 {
		attempts = 1
	}
	for {
		err := f()
		if err != nil {
			if (!strings.Contains(err.Error(), "connection") && !strings.Contains(err.Error(), "EOF")) || counter >= attempts {
				panic(err)
			}
			log.Errorf("Connection error, try again (attempt %d, totalAttempts %d) %+v", counter, attempts, err)
			counter++
			time.Sleep(interval)
			continue
		}
		return
	}
}
