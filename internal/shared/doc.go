// Package shared holds helpers used across packages that do not belong to a
// single layer. The testutil subpackage provides captured slog handlers and
// line-list fixtures for tests.
package shared
