package test

import (
	"testing"

	"pgregory.net/rapid"
)

// FailerT is the part of [testing.TB] needed to report failures. It is also
// implemented by [rapid.T], so the assertions can be used inside property
// checks.
type FailerT interface {
	Helper()
	Log(...any)
	Logf(string, ...any)
	Fatal(...any)
	Fatalf(string, ...any)
	Error(...any)
	Errorf(string, ...any)
}

// TestingT is a [FailerT] that can also register cleanup functions, which is
// needed by helpers that wait on timeouts.
type TestingT interface {
	FailerT
	Cleanup(func())
}

var (
	_ TestingT = (testing.TB)(nil)
	_ FailerT  = (*rapid.T)(nil)
)
