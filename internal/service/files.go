package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"smokeplan/internal/codec"
	"smokeplan/internal/domain"
	"smokeplan/internal/logging"
)

// ReadProject decodes the project file at path. The codec is chosen from the
// file extension; JSON files in the legacy layout are imported.
func ReadProject(path string) (*domain.Scene, error) {
	scene, _, err := ImportProject(path)
	return scene, err
}

// ImportProject is ReadProject that also returns the legacy import report.
// The report is nil for native project files.
func ImportProject(path string) (*domain.Scene, *codec.ImportReport, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project: %w", err)
	}

	if c.Format() == "json" && codec.IsLegacy(data) {
		scene, report, err := codec.NewLegacyImporter().Import(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to import legacy project %s: %w", path, err)
		}
		return scene, report, nil
	}

	scene, err := c.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read project %s: %w", path, err)
	}
	return scene, nil, nil
}

// WriteProject encodes snap to path. The file is written beside the target
// and renamed into place, so a failed write never truncates an existing
// project.
func WriteProject(path string, snap *domain.Snapshot) error {
	c, err := codec.ForPath(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Encode(tmp, snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace project: %w", err)
	}
	return nil
}

// LoadFile replaces the open scene with the project stored at path
func (s *ProjectService) LoadFile(ctx context.Context, path string) error {
	scene, err := ReadProject(path)
	if err != nil {
		return err
	}
	s.Replace(ctx, scene)
	return nil
}

// SaveFile writes the open scene to path
func (s *ProjectService) SaveFile(ctx context.Context, path string) error {
	if err := WriteProject(path, s.Snapshot()); err != nil {
		return err
	}
	s.log.Info(ctx, "project saved", logging.String("path", path))
	return nil
}
