// Package helper provides testing utilities and log handlers for PostgreSQL circulation engine testing.
//
// This package contains shared testing infrastructure including custom log handlers
// for capturing and validating log output during tests, spy implementations of the
// observability interfaces, and fixture helpers used across the engine test suite.
package helper
