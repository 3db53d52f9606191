package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smokeplan/internal/domain"
	"smokeplan/internal/layout"
	"smokeplan/internal/logging"
	"smokeplan/internal/observability"
	"smokeplan/internal/pdf"
)

// ErrProjectInvalid is returned by strict exports when validation finds errors.
var ErrProjectInvalid = errors.New("project has validation errors")

// ExportRequest describes one export
type ExportRequest struct {
	Page    layout.Page
	Options layout.Options
	PDF     pdf.Options
	// Strict refuses to export a project whose validation report has errors.
	Strict bool
}

// DefaultExportRequest is an A4 landscape export with everything drawn
func DefaultExportRequest() ExportRequest {
	return ExportRequest{
		Page:    layout.DefaultPage(),
		Options: layout.DefaultOptions(),
		PDF:     pdf.DefaultOptions(),
	}
}

// ExportResult is a finished export
type ExportResult struct {
	PDF      []byte
	Document *layout.Document
	Report   domain.Report
	Elapsed  time.Duration
}

// ExportService renders scene snapshots to PDF
type ExportService struct {
	log      logging.Logger
	metrics  *observability.Collector
	tracer   trace.Tracer
	eventBus *EventBus
	baseDir  string
	now      func() time.Time
}

// ExportOption configures an ExportService
type ExportOption func(*ExportService)

// WithExportLogger sets the logger
func WithExportLogger(l logging.Logger) ExportOption {
	return func(s *ExportService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithExportMetrics records export outcomes on c
func WithExportMetrics(c *observability.Collector) ExportOption {
	return func(s *ExportService) { s.metrics = c }
}

// WithEventBus announces finished exports
func WithEventBus(b *EventBus) ExportOption {
	return func(s *ExportService) { s.eventBus = b }
}

// WithImageDir resolves relative plan image paths against dir
func WithImageDir(dir string) ExportOption {
	return func(s *ExportService) { s.baseDir = dir }
}

// WithClock replaces the generation timestamp source
func WithClock(now func() time.Time) ExportOption {
	return func(s *ExportService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewExportService creates an export service
func NewExportService(opts ...ExportOption) *ExportService {
	s := &ExportService{
		log:    logging.Noop(),
		tracer: observability.Tracer(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Job is an export running on its own goroutine
type Job struct {
	ID     string
	cancel context.CancelFunc
	done   chan struct{}
	result *ExportResult
	err    error
}

// Wait blocks until the export finishes and returns its result
func (j *Job) Wait() (*ExportResult, error) {
	<-j.done
	return j.result, j.err
}

// Done is closed when the export has finished
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel abandons the export. Wait then returns context.Canceled unless the
// job had already finished.
func (j *Job) Cancel() {
	j.cancel()
}

// Start begins exporting snap. The snapshot must not be modified afterwards.
func (s *ExportService) Start(ctx context.Context, snap *domain.Snapshot, req ExportRequest) *Job {
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{ID: uuid.NewString(), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(job.done)
		defer cancel()
		job.result, job.err = s.run(ctx, job.ID, snap, req)
	}()
	return job
}

// Export runs an export and waits for it
func (s *ExportService) Export(ctx context.Context, snap *domain.Snapshot, req ExportRequest) (*ExportResult, error) {
	return s.Start(ctx, snap, req).Wait()
}

// Layout computes the draw operations without producing a PDF
func (s *ExportService) Layout(ctx context.Context, snap *domain.Snapshot, req ExportRequest) (*layout.Document, error) {
	opts := req.Options
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = s.now()
	}
	return layout.Render(ctx, snap, req.Page, opts)
}

func (s *ExportService) run(ctx context.Context, jobID string, snap *domain.Snapshot, req ExportRequest) (res *ExportResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "export",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.Int("scene.detectors", len(snap.Detectors)),
			attribute.Int("scene.connections", len(snap.Connections)),
			attribute.String("export.paper", req.Page.Paper.Name),
		))
	log := s.log.With(logging.String("job_id", jobID))

	var opCounts map[string]int
	defer func() {
		elapsed := time.Since(start)
		s.metrics.ObserveExport(observability.ExportOutcome(err), elapsed, opCounts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Warn(ctx, "export failed", logging.Err(err), logging.Duration("elapsed", elapsed))
		} else {
			res.Elapsed = elapsed
			log.Info(ctx, "export finished",
				logging.Int("bytes", len(res.PDF)),
				logging.Int("ops", len(res.Document.Ops)),
				logging.Duration("elapsed", elapsed),
			)
			s.eventBus.Publish(Event{Type: EventExportFinished, Payload: map[string]interface{}{
				"job_id": jobID,
				"bytes":  len(res.PDF),
			}})
		}
		span.End()
	}()

	report := domain.Validate(snap)
	if req.Strict && !report.OK() {
		return nil, fmt.Errorf("%w: %d error(s), first: %s", ErrProjectInvalid, len(report.Errors), report.Errors[0].Message)
	}

	snap, err = s.withImage(snap)
	if err != nil {
		return nil, err
	}

	_, layoutSpan := s.tracer.Start(ctx, "export.layout")
	doc, err := s.Layout(ctx, snap, req)
	layoutSpan.End()
	if err != nil {
		return nil, err
	}
	opCounts = countOps(doc.Ops)

	_, renderSpan := s.tracer.Start(ctx, "export.render")
	data, err := pdf.Render(ctx, doc, req.PDF)
	renderSpan.End()
	if err != nil {
		return nil, err
	}

	return &ExportResult{PDF: data, Document: doc, Report: report}, nil
}

// withImage returns a snapshot whose plan carries the image bytes, reading
// them from the plan path when the project does not embed them. The caller's
// snapshot is not modified.
func (s *ExportService) withImage(snap *domain.Snapshot) (*domain.Snapshot, error) {
	if len(snap.Plan.Data) > 0 || snap.Plan.Path == "" {
		return snap, nil
	}
	path := snap.Plan.Path
	if !filepath.IsAbs(path) && s.baseDir != "" {
		path = filepath.Join(s.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read floor plan image: %w", err)
	}
	local := *snap
	local.Plan.Data = data
	return &local, nil
}

func countOps(ops []layout.Op) map[string]int {
	counts := make(map[string]int)
	for _, op := range ops {
		counts[string(op.Kind())]++
	}
	return counts
}
