// Package domain defines the floor-plan scene model for smoke-detector
// installation planning.
//
// This package contains the entities and value objects that describe a
// planned installation: the detectors placed on a floor plan, the wiring
// between them and the plan image they sit on.
//
// # Core Types
//
// Detector is an addressable device (smoke detector, IO unit or manual call
// point) placed at a plan-space position. It carries loop addressing
// (bus, group, address), identity fields usually filled from a QR payload and
// a coverage range in metres.
//
// Connection is an undirected wire between two detectors. Endpoints are stored
// in a stable order and the ID is derived from them, so the same pair always
// yields the same connection.
//
// Scene owns the floor plan, the detectors and the connections, keyed by ID.
// Every mutation validates before it writes; a failed call leaves the scene as
// it was. Removing a detector removes every connection touching it.
//
// Snapshot is a detached, sorted copy of a Scene used by export and
// persistence while the live scene keeps changing.
//
// # Validation
//
// Validate inspects a Snapshot for installation problems (duplicate addresses,
// detectors placed too close, missing or shared serials) and reports errors
// and warnings without touching the scene.
//
// # Errors
//
// Callers match failures with errors.Is against ErrNotFound,
// ErrSelfConnection and ErrDuplicateConnection, and with errors.As against
// *ValidationError.
package domain
