package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/repository"

	_ "modernc.org/sqlite"
)

var _ repository.Repository = (*Repository)(nil)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	memory := dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		notes TEXT,
		plan_path TEXT,
		plan_width INTEGER NOT NULL DEFAULT 0,
		plan_height INTEGER NOT NULL DEFAULT 0,
		pixels_per_meter REAL NOT NULL DEFAULT 0,
		scale_text TEXT,
		pdf_page INTEGER NOT NULL DEFAULT 0,
		plan_fingerprint TEXT,
		plan_data BLOB,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS detectors (
		project_id TEXT NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'detector',
		x REAL NOT NULL,
		y REAL NOT NULL,
		model TEXT,
		brand TEXT,
		range_m REAL NOT NULL,
		bus TEXT,
		grp TEXT,
		address TEXT,
		serial TEXT,
		paired_serial TEXT,
		room_id TEXT,
		qr_data TEXT,
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS connections (
		project_id TEXT NOT NULL,
		id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
		FOREIGN KEY (project_id, from_id) REFERENCES detectors(project_id, id) ON DELETE CASCADE,
		FOREIGN KEY (project_id, to_id) REFERENCES detectors(project_id, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_detectors_serial ON detectors(project_id, serial);
	CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(project_id, from_id);
	CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(project_id, to_id);
	CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveProject stores a snapshot, replacing the project's previous detectors
// and connections in one transaction
func (r *Repository) SaveProject(ctx context.Context, id string, snap *domain.Snapshot) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := formatTime(r.now())
	p := snap.Plan

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, notes, plan_path, plan_width, plan_height, pixels_per_meter,
			scale_text, pdf_page, plan_fingerprint, plan_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			notes = excluded.notes,
			plan_path = excluded.plan_path,
			plan_width = excluded.plan_width,
			plan_height = excluded.plan_height,
			pixels_per_meter = excluded.pixels_per_meter,
			scale_text = excluded.scale_text,
			pdf_page = excluded.pdf_page,
			plan_fingerprint = excluded.plan_fingerprint,
			plan_data = excluded.plan_data,
			updated_at = excluded.updated_at
	`, id, snap.Metadata.Name, stringToNull(snap.Metadata.Notes), stringToNull(p.Path), p.Width, p.Height,
		p.PixelsPerMeter, stringToNull(p.ScaleText), p.PDFPage, stringToNull(p.Fingerprint), bytesToNull(p.Data),
		now, now)
	if err != nil {
		return "", fmt.Errorf("failed to upsert project: %w", err)
	}

	// connections go with their detectors
	if _, err := tx.ExecContext(ctx, `DELETE FROM detectors WHERE project_id = ?`, id); err != nil {
		return "", fmt.Errorf("failed to clear detectors: %w", err)
	}

	detStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detectors (project_id, id, type, x, y, model, brand, range_m, bus, grp, address,
			serial, paired_serial, room_id, qr_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare detector insert: %w", err)
	}
	defer detStmt.Close()

	for _, d := range snap.Detectors {
		_, err := detStmt.ExecContext(ctx, id, d.ID, string(d.Type), d.Position.X, d.Position.Y,
			stringToNull(d.Model), stringToNull(d.Brand), d.RangeM, stringToNull(d.Bus), stringToNull(d.Group),
			stringToNull(d.Address), stringToNull(d.Serial), stringToNull(d.PairedSerial),
			stringToNull(d.RoomID), stringToNull(d.QRData))
		if err != nil {
			return "", fmt.Errorf("failed to insert detector %s: %w", d.ID, err)
		}
	}

	for _, c := range snap.Connections {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO connections (project_id, id, from_id, to_id) VALUES (?, ?, ?, ?)
		`, id, c.ID, c.FromID, c.ToID)
		if err != nil {
			return "", fmt.Errorf("failed to insert connection %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

// LoadProject reads a project and rebuilds its scene
func (r *Repository) LoadProject(ctx context.Context, id string) (*domain.Scene, error) {
	var (
		snap                                domain.Snapshot
		notes, path, scaleText, fingerprint sql.NullString
		updatedAt                           string
		data                                []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT name, notes, plan_path, plan_width, plan_height, pixels_per_meter, scale_text,
			pdf_page, plan_fingerprint, plan_data, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&snap.Metadata.Name, &notes, &path, &snap.Plan.Width, &snap.Plan.Height,
		&snap.Plan.PixelsPerMeter, &scaleText, &snap.Plan.PDFPage, &fingerprint, &data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	snap.Metadata.Notes = nullToString(notes)
	snap.Plan.Path = nullToString(path)
	snap.Plan.ScaleText = nullToString(scaleText)
	snap.Plan.Fingerprint = nullToString(fingerprint)
	if len(data) > 0 {
		snap.Plan.Data = data
	}
	snap.TakenAt = parseTime(updatedAt)

	if err := snap.Plan.VerifyImage(); err != nil {
		return nil, err
	}

	snap.Detectors, err = r.detectors(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.Connections, err = r.connections(ctx, id)
	if err != nil {
		return nil, err
	}

	return snap.Restore()
}

func (r *Repository) detectors(ctx context.Context, projectID string) ([]domain.Detector, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, x, y, model, brand, range_m, bus, grp, address, serial, paired_serial, room_id, qr_data
		FROM detectors WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detectors: %w", err)
	}
	defer rows.Close()

	var out []domain.Detector
	for rows.Next() {
		var (
			d                                                           domain.Detector
			typ                                                         string
			x, y                                                        float64
			model, brand, bus, group, address, serial, paired, room, qr sql.NullString
		)
		if err := rows.Scan(&d.ID, &typ, &x, &y, &model, &brand, &d.RangeM, &bus, &group, &address,
			&serial, &paired, &room, &qr); err != nil {
			return nil, fmt.Errorf("failed to scan detector: %w", err)
		}
		d.Type = domain.DeviceType(typ)
		d.Position = geometry.Plan(x, y)
		d.Model = nullToString(model)
		d.Brand = nullToString(brand)
		d.Bus = nullToString(bus)
		d.Group = nullToString(group)
		d.Address = nullToString(address)
		d.Serial = nullToString(serial)
		d.PairedSerial = nullToString(paired)
		d.RoomID = nullToString(room)
		d.QRData = nullToString(qr)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detectors: %w", err)
	}
	return out, nil
}

func (r *Repository) connections(ctx context.Context, projectID string) ([]domain.Connection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_id, to_id FROM connections WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.ID, &c.FromID, &c.ToID); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}
	return out, nil
}

// ListProjects returns project summaries, most recently updated first
func (r *Repository) ListProjects(ctx context.Context) ([]repository.ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM detectors d WHERE d.project_id = p.id),
			(SELECT COUNT(*) FROM connections c WHERE c.project_id = p.id)
		FROM projects p
		ORDER BY p.updated_at DESC, p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []repository.ProjectSummary
	for rows.Next() {
		var (
			s                repository.ProjectSummary
			created, updated string
		)
		if err := rows.Scan(&s.ID, &s.Name, &created, &updated, &s.Detectors, &s.Connections); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		s.CreatedAt = parseTime(created)
		s.UpdatedAt = parseTime(updated)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return out, nil
}

// DeleteProject removes a project; detectors and connections cascade
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("project %s %w", id, domain.ErrNotFound)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
