// Package common holds helpers shared by several services.
//
// It provides a gRPC client for the viewer query API with call timeouts, and
// detects the current operator (user@host) so that state-changing calls can
// be attributed in the daemon log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
