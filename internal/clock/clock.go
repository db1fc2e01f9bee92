// Package clock provides time sources and time-related helpers.
package clock

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockledger/pkg/safe"
)

// Clock supplies the current time as unix seconds in the uint32 range.
type Clock interface {
	Now() uint32
}

// System reads the wall clock.
type System struct{}

// Now returns seconds since the unix epoch. It panics once the value no longer
// fits in 32 bits, which happens in 2106.
func (System) Now() uint32 {
	now, err := safe.Uint32(time.Now().Unix())
	if err != nil {
		panic("clock: " + err.Error())
	}
	return now
}

// Fixed always reports the same instant.
type Fixed uint32

// Now returns the fixed timestamp.
func (f Fixed) Now() uint32 {
	return uint32(f)
}

// Func adapts a function to the Clock interface.
type Func func() uint32

// Now calls f.
func (f Func) Now() uint32 {
	return f()
}

// SleepWithContext waits for the duration or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
