package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"smokeplan/internal/codec"
	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/identity"
	"smokeplan/internal/logging"
	"smokeplan/internal/service"
)

const (
	maxBodyBytes    = 1 << 20
	maxProjectBytes = 64 << 20
)

// SceneHandler serves the scene API for one open project
type SceneHandler struct {
	project  *service.ProjectService
	exporter *service.ExportService
	defaults service.ExportRequest
	path     string
	log      logging.Logger
}

// NewSceneHandler creates a scene handler. defaults seeds every export
// request before the request body is applied.
func NewSceneHandler(project *service.ProjectService, exporter *service.ExportService, defaults service.ExportRequest) *SceneHandler {
	return &SceneHandler{
		project:  project,
		exporter: exporter,
		defaults: defaults,
		log:      logging.Noop(),
	}
}

// SetLogger sets the fallback logger used outside request scope
func (h *SceneHandler) SetLogger(l logging.Logger) {
	if l != nil {
		h.log = l
	}
}

// SetProjectPath enables POST /api/project/save to write to path
func (h *SceneHandler) SetProjectPath(path string) {
	h.path = path
}

// Register adds every scene route to mux
func (h *SceneHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/scene", h.GetScene)
	mux.HandleFunc("PUT /api/scene/metadata", h.SetMetadata)
	mux.HandleFunc("PUT /api/scene/plan", h.SetPlan)
	mux.HandleFunc("PUT /api/scene/plan/calibration", h.Calibrate)

	mux.HandleFunc("GET /api/detectors", h.ListDetectors)
	mux.HandleFunc("POST /api/detectors", h.PlaceDetector)
	mux.HandleFunc("GET /api/detectors/{id}", h.GetDetector)
	mux.HandleFunc("PUT /api/detectors/{id}", h.UpdateDetector)
	mux.HandleFunc("DELETE /api/detectors/{id}", h.RemoveDetector)
	mux.HandleFunc("POST /api/detectors/{id}/move", h.MoveDetector)
	mux.HandleFunc("POST /api/detectors/{id}/qr", h.ApplyQR)
	mux.HandleFunc("GET /api/detectors/{id}/paired", h.GetPaired)
	mux.HandleFunc("GET /api/detectors/{id}/connections", h.ListDetectorConnections)

	mux.HandleFunc("GET /api/connections", h.ListConnections)
	mux.HandleFunc("POST /api/connections", h.Connect)
	mux.HandleFunc("DELETE /api/connections/{id}", h.Disconnect)

	mux.HandleFunc("POST /api/qr/parse", h.ParseQR)
	mux.HandleFunc("GET /api/search", h.Search)
	mux.HandleFunc("GET /api/validate", h.Validate)

	mux.HandleFunc("GET /api/view", h.GetView)
	mux.HandleFunc("POST /api/view/zoom", h.ZoomView)
	mux.HandleFunc("POST /api/view/pan", h.PanView)
	mux.HandleFunc("POST /api/view/reset", h.ResetView)
	mux.HandleFunc("POST /api/view/pick", h.Pick)

	mux.HandleFunc("POST /api/export/pdf", h.ExportPDF)
	mux.HandleFunc("POST /api/export/layout", h.ExportLayout)

	mux.HandleFunc("GET /api/project", h.DownloadProject)
	mux.HandleFunc("PUT /api/project", h.UploadProject)
	mux.HandleFunc("POST /api/project/save", h.SaveProject)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

// SceneResponse is the scene without embedded image bytes
type SceneResponse struct {
	Metadata    domain.Metadata     `json:"metadata"`
	Plan        domain.FloorPlan    `json:"plan"`
	Detectors   []domain.Detector   `json:"detectors"`
	Connections []domain.Connection `json:"connections"`
	HasImage    bool                `json:"has_image"`
}

// GetScene returns the whole scene
func (h *SceneHandler) GetScene(w http.ResponseWriter, r *http.Request) {
	snap := h.project.Snapshot()
	resp := SceneResponse{
		Metadata:    snap.Metadata,
		Plan:        snap.Plan,
		Detectors:   snap.Detectors,
		Connections: snap.Connections,
		HasImage:    len(snap.Plan.Data) > 0,
	}
	resp.Plan.Data = nil
	h.writeJSON(w, resp, http.StatusOK)
}

// SetMetadata replaces the project name and notes
func (h *SceneHandler) SetMetadata(w http.ResponseWriter, r *http.Request) {
	var m domain.Metadata
	if !h.decode(w, r, &m) {
		return
	}
	if err := h.project.SetMetadata(r.Context(), m); err != nil {
		h.writeServiceError(w, r, "Failed to update metadata", err)
		return
	}
	h.writeJSON(w, h.project.Metadata(), http.StatusOK)
}

// PlanRequest sets the floor plan reference
type PlanRequest struct {
	Path           string  `json:"path"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	PixelsPerMeter float64 `json:"pixels_per_meter"`
	Scale          string  `json:"scale,omitempty"`
}

// SetPlan replaces the floor plan reference. Embedded image bytes are kept
// when the path is unchanged.
func (h *SceneHandler) SetPlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	current := h.project.Plan()
	plan := domain.FloorPlan{
		Path:           req.Path,
		Width:          req.Width,
		Height:         req.Height,
		PixelsPerMeter: req.PixelsPerMeter,
	}
	if req.Path == current.Path {
		plan.Data, plan.Fingerprint = current.Data, current.Fingerprint
	}
	if req.Scale != "" {
		ppm, ratio, err := domain.ParseScale(req.Scale)
		if err != nil {
			h.writeServiceError(w, r, "Invalid scale", err)
			return
		}
		if ppm > 0 {
			plan.PixelsPerMeter = ppm
		}
		plan.ScaleText = ratio
	}

	if err := h.project.SetPlan(r.Context(), plan); err != nil {
		h.writeServiceError(w, r, "Failed to set plan", err)
		return
	}
	resp := h.project.Plan()
	resp.Data = nil
	h.writeJSON(w, resp, http.StatusOK)
}

// CalibrationRequest gives two plan points a known distance apart
type CalibrationRequest struct {
	A      geometry.PlanPoint `json:"a"`
	B      geometry.PlanPoint `json:"b"`
	Meters float64            `json:"meters"`
}

// Calibrate sets the plan scale
func (h *SceneHandler) Calibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.project.Calibrate(r.Context(), req.A, req.B, req.Meters); err != nil {
		h.writeServiceError(w, r, "Failed to calibrate plan", err)
		return
	}
	resp := h.project.Plan()
	resp.Data = nil
	h.writeJSON(w, resp, http.StatusOK)
}

// ListDetectors returns all detectors
func (h *SceneHandler) ListDetectors(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.project.Detectors(), http.StatusOK)
}

// PlaceRequest places a detector and optionally sets its fields
type PlaceRequest struct {
	Position geometry.PlanPoint     `json:"position"`
	Fields   *domain.DetectorUpdate `json:"fields,omitempty"`
}

// PlaceDetector adds a detector. When fields are given and invalid, the
// placement is undone and the validation error returned.
func (h *SceneHandler) PlaceDetector(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	d, err := h.project.PlaceDetector(ctx, req.Position)
	if err != nil {
		h.writeServiceError(w, r, "Failed to place detector", err)
		return
	}
	if req.Fields != nil && !req.Fields.Empty() {
		updated, err := h.project.UpdateDetector(ctx, d.ID, *req.Fields)
		if err != nil {
			if _, rmErr := h.project.RemoveDetector(ctx, d.ID); rmErr != nil {
				logging.FromContext(ctx, h.log).Error(ctx, "failed to undo placement", logging.Err(rmErr))
			}
			h.writeServiceError(w, r, "Failed to place detector", err)
			return
		}
		d = updated
	}
	h.writeJSON(w, d, http.StatusCreated)
}

// GetDetector returns one detector
func (h *SceneHandler) GetDetector(w http.ResponseWriter, r *http.Request) {
	d, err := h.project.Detector(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get detector", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// UpdateDetector applies a partial update
func (h *SceneHandler) UpdateDetector(w http.ResponseWriter, r *http.Request) {
	var u domain.DetectorUpdate
	if !h.decode(w, r, &u) {
		return
	}
	d, err := h.project.UpdateDetector(r.Context(), r.PathValue("id"), u)
	if err != nil {
		h.writeServiceError(w, r, "Failed to update detector", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// RemoveDetector deletes a detector and its connections
func (h *SceneHandler) RemoveDetector(w http.ResponseWriter, r *http.Request) {
	removed, err := h.project.RemoveDetector(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to remove detector", err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	h.writeJSON(w, map[string][]string{"removed_connections": removed}, http.StatusOK)
}

// MoveDetector changes a detector's position
func (h *SceneHandler) MoveDetector(w http.ResponseWriter, r *http.Request) {
	var pos geometry.PlanPoint
	if !h.decode(w, r, &pos) {
		return
	}
	d, err := h.project.MoveDetector(r.Context(), r.PathValue("id"), pos)
	if err != nil {
		h.writeServiceError(w, r, "Failed to move detector", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// QRRequest carries a raw QR payload
type QRRequest struct {
	Payload string `json:"payload"`
}

// QRResponse is the result of applying a payload
type QRResponse struct {
	Detector domain.Detector `json:"detector"`
	Parsed   identity.Fields `json:"parsed"`
}

// ApplyQR parses a payload and commits it to a detector
func (h *SceneHandler) ApplyQR(w http.ResponseWriter, r *http.Request) {
	var req QRRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, fields, err := h.project.ApplyQR(r.Context(), r.PathValue("id"), req.Payload)
	if err != nil {
		h.writeServiceError(w, r, "Failed to apply QR payload", err)
		return
	}
	h.writeJSON(w, QRResponse{Detector: d, Parsed: fields}, http.StatusOK)
}

// ParseQR previews the fields a payload would set
func (h *SceneHandler) ParseQR(w http.ResponseWriter, r *http.Request) {
	var req QRRequest
	if !h.decode(w, r, &req) {
		return
	}
	fields, err := h.project.ParseQR(req.Payload)
	if err != nil {
		h.writeServiceError(w, r, "Could not auto-fill fields", err)
		return
	}
	h.writeJSON(w, fields, http.StatusOK)
}

// GetPaired returns the detector sharing an enclosure with {id}
func (h *SceneHandler) GetPaired(w http.ResponseWriter, r *http.Request) {
	d, err := h.project.PairedDetector(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to resolve paired detector", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// ListDetectorConnections returns the connections touching {id}
func (h *SceneHandler) ListDetectorConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.project.ConnectionsOf(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list connections", err)
		return
	}
	if conns == nil {
		conns = []domain.Connection{}
	}
	h.writeJSON(w, conns, http.StatusOK)
}

// ListConnections returns all connections
func (h *SceneHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.project.Connections(), http.StatusOK)
}

// ConnectRequest names the two detectors to wire together
type ConnectRequest struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// Connect creates a connection
func (h *SceneHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.project.Connect(r.Context(), req.FromID, req.ToID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to connect detectors", err)
		return
	}
	h.writeJSON(w, c, http.StatusCreated)
}

// Disconnect removes a connection
func (h *SceneHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.project.Disconnect(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, "Failed to remove connection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search finds detectors by serial, address label or room
func (h *SceneHandler) Search(w http.ResponseWriter, r *http.Request) {
	found := h.project.Find(r.URL.Query().Get("q"))
	if found == nil {
		found = []domain.Detector{}
	}
	h.writeJSON(w, found, http.StatusOK)
}

// Validate returns the project validation report
func (h *SceneHandler) Validate(w http.ResponseWriter, r *http.Request) {
	report := h.project.Validate()
	if report.Errors == nil {
		report.Errors = []domain.Issue{}
	}
	if report.Warnings == nil {
		report.Warnings = []domain.Issue{}
	}
	h.writeJSON(w, report, http.StatusOK)
}

// GetView returns the current view transform
func (h *SceneHandler) GetView(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.project.View(), http.StatusOK)
}

// ZoomRequest zooms by Steps zoom steps anchored at Focal
type ZoomRequest struct {
	Focal geometry.ViewPoint `json:"focal"`
	Steps float64            `json:"steps"`
}

// ZoomView zooms the view around a focal point
func (h *SceneHandler) ZoomView(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeJSON(w, h.project.ZoomView(r.Context(), req.Focal, req.Steps), http.StatusOK)
}

// PanView translates the view
func (h *SceneHandler) PanView(w http.ResponseWriter, r *http.Request) {
	var delta geometry.ViewPoint
	if !h.decode(w, r, &delta) {
		return
	}
	h.writeJSON(w, h.project.PanView(r.Context(), delta), http.StatusOK)
}

// ResetView restores unit zoom and no pan
func (h *SceneHandler) ResetView(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.project.ResetView(r.Context()), http.StatusOK)
}

// PickRequest hit-tests a view point
type PickRequest struct {
	At     geometry.ViewPoint `json:"at"`
	Radius float64            `json:"radius,omitempty"`
}

// PickResponse is the detector under the pointer
type PickResponse struct {
	Detector domain.Detector    `json:"detector"`
	PlanAt   geometry.PlanPoint `json:"plan_at"`
}

// Pick returns the detector nearest to a view point
func (h *SceneHandler) Pick(w http.ResponseWriter, r *http.Request) {
	var req PickRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, at, err := h.project.Pick(req.At, req.Radius)
	if err != nil {
		h.writeServiceError(w, r, "Nothing to pick", err)
		return
	}
	h.writeJSON(w, PickResponse{Detector: d, PlanAt: at}, http.StatusOK)
}

// ExportRequest overrides the configured export defaults. Nil fields keep
// the default.
type ExportRequest struct {
	Paper             string `json:"paper,omitempty"`
	Orientation       string `json:"orientation,omitempty"`
	ShowRangeCircles  *bool  `json:"show_range_circles,omitempty"`
	ShowAddressLabels *bool  `json:"show_address_labels,omitempty"`
	IncludeSchedule   *bool  `json:"include_schedule,omitempty"`
	Footer            string `json:"footer,omitempty"`
	Strict            bool   `json:"strict,omitempty"`
}

func (h *SceneHandler) exportRequest(w http.ResponseWriter, r *http.Request) (service.ExportRequest, bool) {
	req := h.defaults
	var body ExportRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &body) {
			return req, false
		}
	}
	if body.Paper != "" {
		paper, ok := geometry.LookupPaper(body.Paper)
		if !ok {
			h.writeError(w, "Invalid export request",
				fmt.Sprintf("paper %q is not one of %s", body.Paper, strings.Join(geometry.PaperNames(), ", ")),
				http.StatusBadRequest)
			return req, false
		}
		req.Page.Paper = paper
	}
	if body.Orientation != "" {
		req.Options.Orientation = geometry.ParseOrientation(body.Orientation)
	}
	if body.ShowRangeCircles != nil {
		req.Options.ShowRangeCircles = *body.ShowRangeCircles
	}
	if body.ShowAddressLabels != nil {
		req.Options.ShowAddressLabels = *body.ShowAddressLabels
	}
	if body.IncludeSchedule != nil {
		req.Options.IncludeSchedule = *body.IncludeSchedule
	}
	if body.Footer != "" {
		req.Options.MetadataFooter = body.Footer
	}
	req.Strict = req.Strict || body.Strict
	return req, true
}

// ExportPDF renders the scene as a PDF download
func (h *SceneHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	req, ok := h.exportRequest(w, r)
	if !ok {
		return
	}
	res, err := h.exporter.Export(r.Context(), h.project.Snapshot(), req)
	if err != nil {
		h.writeServiceError(w, r, "Export failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(h.project.Metadata().Name, "pdf")))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.PDF); err != nil {
		logging.FromContext(r.Context(), h.log).Warn(r.Context(), "failed to send pdf", logging.Err(err))
	}
}

// ExportLayout returns the draw operations an export would produce
func (h *SceneHandler) ExportLayout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.exportRequest(w, r)
	if !ok {
		return
	}
	doc, err := h.exporter.Layout(r.Context(), h.project.Snapshot(), req)
	if err != nil {
		h.writeServiceError(w, r, "Layout failed", err)
		return
	}
	h.writeJSON(w, doc, http.StatusOK)
}

// DownloadProject returns the encoded project. ?format=yaml selects YAML.
func (h *SceneHandler) DownloadProject(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeServiceError(w, r, "Unsupported format", err)
		return
	}
	var buf bytes.Buffer
	if err := h.project.Save(&buf, c); err != nil {
		h.writeServiceError(w, r, "Failed to encode project", err)
		return
	}
	ext, contentType := "sdp", "application/json"
	if c.Format() == "yaml" {
		ext, contentType = "yaml", "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(h.project.Metadata().Name, ext)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// UploadProject replaces the open scene with the uploaded project
func (h *SceneHandler) UploadProject(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeServiceError(w, r, "Unsupported format", err)
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxProjectBytes)
	if err := h.project.Load(r.Context(), body, c); err != nil {
		h.writeError(w, "Failed to load project", err.Error(), statusFor(err, http.StatusBadRequest))
		return
	}
	h.GetScene(w, r)
}

// SaveProject writes the open scene back to its project file
func (h *SceneHandler) SaveProject(w http.ResponseWriter, r *http.Request) {
	if h.path == "" {
		h.writeError(w, "No project file", "the server was started without a project path", http.StatusConflict)
		return
	}
	if err := h.project.SaveFile(r.Context(), h.path); err != nil {
		h.writeServiceError(w, r, "Failed to save project", err)
		return
	}
	h.writeJSON(w, map[string]string{"path": h.path}, http.StatusOK)
}

// decode reads a JSON body into v, replying 400 on failure
func (h *SceneHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps a service error to an HTTP status
func statusFor(err error, fallback int) int {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSelfConnection),
		errors.Is(err, identity.ErrUnrecognizedPayload),
		errors.Is(err, codec.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateConnection):
		return http.StatusConflict
	case errors.Is(err, geometry.ErrDegenerateGeometry),
		errors.Is(err, service.ErrProjectInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return fallback
	}
}

func (h *SceneHandler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err, http.StatusInternalServerError)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), h.log).Error(r.Context(), msg, logging.Err(err))
	}
	resp := ErrorResponse{Error: msg, Details: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	h.writeJSON(w, resp, status)
}

func (h *SceneHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn(context.Background(), "failed to encode JSON", logging.Err(err))
	}
}

func (h *SceneHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

// exportName builds a download file name from the project name
func exportName(project, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, project)
	if name == "" {
		name = "smokeplan"
	}
	return name + "." + ext
}
