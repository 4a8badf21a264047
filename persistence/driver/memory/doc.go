// Package memory provides a key/value store that keeps its data in memory.
//
// It is the reference implementation of [kv.Store] and is used throughout the
// test suites. Data does not survive a restart and is not shared between
// processes, so it is only suitable for single-process deployments.
package memory
