// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package cycle

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Limit int

const (
	INFINITY Limit = math.MaxInt32
)

// Backoff describes the delay between attempts: Interval doubles after every
// failure and never exceeds Max.
type Backoff struct {
	Interval time.Duration
	Max      time.Duration
}

func (b Backoff) next(current time.Duration) time.Duration {
	if current <= 0 {
		return b.Interval
	}
	n := current * 2
	if b.Max > 0 && n > b.Max {
		return b.Max
	}
	return n
}

// UntilError calls f until it succeeds, the attempts are exhausted or ctx is done.
// The last error of f is returned when it never succeeded.
func UntilError(ctx context.Context, f func() error, backoff Backoff, attempts Limit, log logrus.FieldLogger) error {
	counter := Limit(1)
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(0)
	for {
		err := f()
		if err == nil {
			return nil
		}
		if counter >= attempts {
			return errors.Wrapf(err, "gave up after %d attempts", counter)
		}
		delay = backoff.next(delay)
		log.WithField("attempt", counter).
			WithField("total_attempts", attempts).
			WithField("retry_in", delay).
			Warnf("attempt failed, trying again: %v", err)
		counter++

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "interrupted after %d attempts, last error: %v", counter-1, err)
		case <-timer.C:
		}
	}
}
