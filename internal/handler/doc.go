// Package handler implements the HTTP API over an open smoke-detector project.
//
// SceneHandler exposes the project service: the scene and its floor plan,
// detectors and connections, QR parsing, search, validation, the view
// transform, PDF and layout export, and whole-project download and upload.
//
// # Response Format
//
// Success responses return JSON with 200 or 201. Errors return
// {error, details, field} where field names the offending input of a
// validation error. Unknown ids map to 404, invalid values to 422, malformed
// requests and unrecognized QR payloads to 400, duplicate connections to 409.
//
// Middleware provides panic recovery, CORS, request IDs, access logging and
// per-route request metrics.
package handler
