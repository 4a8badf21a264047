package test

import "sync/atomic"

// FailOnce returns a function that returns err the first time it is called and
// nil thereafter. It is safe for concurrent use, which allows it to stand in
// for a writer or store that recovers after a transient failure.
func FailOnce(err error) func() error {
	var failed atomic.Bool

	return func() error {
		if failed.CompareAndSwap(false, true) {
			return err
		}
		return nil
	}
}
