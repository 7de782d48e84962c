// Package types defines the Store interface, the logbook and entry entity
// types, revision and lock records, attribute schema coercion, and the
// standard error types for the elog storage core.
package types
