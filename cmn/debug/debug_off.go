//go:build !debug

// Package debug provides assertions that compile to no-ops in production
// builds and panic in `-tags debug` builds.
package debug

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func AssertFunc(_ func() bool, _ ...any) {}
