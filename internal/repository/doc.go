// Package repository defines the project library interface.
//
// The library stores whole projects (metadata, floor plan, detectors and
// connections) under a stable project ID. The implementation is in the
// sqlite subpackage.
//
// # Schema
//
// Projects own their detectors, and detectors own the connections that
// reference them. Deleting a project or a detector cascades to the rows
// below it, so a stored project never holds a dangling connection.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
