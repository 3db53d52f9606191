package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"smokeplan/internal/config"
	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/service"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// workspace writes a default config and a project with the given address
// labels into a temp directory
func workspace(t *testing.T, addresses ...string) (cfgPath, project string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "smokeplan.yaml")
	if err := config.DefaultConfig().Save(cfgPath); err != nil {
		t.Fatal(err)
	}

	scene := domain.NewScene()
	scene.Metadata.Name = "Block A"
	if err := scene.SetPlan(domain.FloorPlan{Width: 200, Height: 100, PixelsPerMeter: 10}); err != nil {
		t.Fatal(err)
	}
	for i, addr := range addresses {
		d, err := scene.PlaceDetector(geometry.Plan(float64(20+40*i), 50), domain.Defaults{})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := scene.UpdateDetector(d.ID, domain.DetectorUpdate{
			Bus:     domain.StringPtr("1"),
			Group:   domain.StringPtr("2"),
			Address: domain.StringPtr(addr),
			Serial:  domain.StringPtr("SN" + addr + string(rune('a'+i))),
		}); err != nil {
			t.Fatal(err)
		}
	}
	project = filepath.Join(dir, "site.sdp")
	if err := service.WriteProject(project, scene.Snapshot()); err != nil {
		t.Fatal(err)
	}
	return cfgPath, project
}

func TestExportCommand(t *testing.T) {
	cfg, project := workspace(t, "3", "4")
	out := filepath.Join(filepath.Dir(project), "plan.pdf")

	stdout, _, err := runCLI(t, "--config", cfg, "export", project, "-o", out, "--paper", "a3", "--schedule")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(stdout, "plan.pdf") {
		t.Errorf("stdout = %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}

	t.Run("default output name", func(t *testing.T) {
		if _, _, err := runCLI(t, "--config", cfg, "export", project); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(strings.TrimSuffix(project, ".sdp") + ".pdf"); err != nil {
			t.Error(err)
		}
	})

	t.Run("unknown paper", func(t *testing.T) {
		if _, _, err := runCLI(t, "--config", cfg, "export", project, "--paper", "letter"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestExportStrict(t *testing.T) {
	cfg, project := workspace(t, "3", "3")

	_, stderr, err := runCLI(t, "--config", cfg, "export", project, "--strict")
	if err == nil {
		t.Fatal("strict export of a project with duplicate addresses succeeded")
	}
	if !strings.Contains(stderr, domain.IssueDuplicateAddress) {
		t.Errorf("stderr does not explain the failure: %q", stderr)
	}

	if _, _, err := runCLI(t, "--config", cfg, "export", project); err != nil {
		t.Errorf("non-strict export failed: %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name      string
		addresses []string
		wantErr   bool
		want      string
	}{
		{"clean", []string{"3", "4"}, false, "no problems found"},
		{"duplicate", []string{"3", "3"}, true, domain.IssueDuplicateAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, project := workspace(t, tt.addresses...)
			stdout, _, err := runCLI(t, "--config", cfg, "validate", "--detectors", project)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, stdout)
			}
			if !strings.Contains(stdout, "1-23") {
				t.Errorf("detector table missing address label:\n%s", stdout)
			}
		})
	}
}

func TestParseQRCommand(t *testing.T) {
	cfg, _ := workspace(t)

	stdout, _, err := runCLI(t, "--config", cfg, "parse-qr", "--json", "SN:12345;MODEL:X3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `"serial": "12345"`) {
		t.Errorf("stdout = %s", stdout)
	}

	if _, _, err := runCLI(t, "--config", cfg, "parse-qr", "garbage"); err == nil {
		t.Error("expected error for unrecognized payload")
	}
}

func TestConvertAndLibrary(t *testing.T) {
	cfg, project := workspace(t, "3")
	dir := filepath.Dir(project)

	yamlPath := filepath.Join(dir, "site.yaml")
	if _, _, err := runCLI(t, "--config", cfg, "convert", project, yamlPath); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := service.ReadProject(yamlPath); err != nil {
		t.Fatalf("converted file unreadable: %v", err)
	}
	if _, _, err := runCLI(t, "--config", cfg, "convert", project, filepath.Join(dir, "site.docx")); err == nil {
		t.Error("expected error for unknown output format")
	}

	db := filepath.Join(dir, "library.db")
	stdout, _, err := runCLI(t, "--config", cfg, "library", "--db", db, "save", yamlPath)
	if err != nil {
		t.Fatalf("library save: %v", err)
	}
	id := strings.TrimSpace(stdout)
	if id == "" {
		t.Fatal("no id printed")
	}

	stdout, _, err = runCLI(t, "--config", cfg, "library", "--db", db, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, id) || !strings.Contains(stdout, "Block A") {
		t.Errorf("list output:\n%s", stdout)
	}

	restored := filepath.Join(dir, "restored.sdp")
	if _, _, err := runCLI(t, "--config", cfg, "library", "--db", db, "load", id, restored); err != nil {
		t.Fatalf("library load: %v", err)
	}
	scene, err := service.ReadProject(restored)
	if err != nil {
		t.Fatal(err)
	}
	if d, _ := scene.Len(); d != 1 {
		t.Errorf("restored %d detectors", d)
	}

	if _, _, err := runCLI(t, "--config", cfg, "library", "--db", db, "delete", id); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "--config", cfg, "library", "--db", db, "load", id, restored); err == nil {
		t.Error("expected error loading a deleted project")
	}
}

func TestConfigCommands(t *testing.T) {
	cfg, _ := workspace(t)

	stdout, _, err := runCLI(t, "--config", cfg, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, cfg) || !strings.Contains(stdout, "A4") {
		t.Errorf("config show:\n%s", stdout)
	}

	if _, _, err := runCLI(t, "--config", cfg, "config", "init", "--path", cfg); err == nil {
		t.Error("init overwrote an existing file without --force")
	}
	fresh := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if _, _, err := runCLI(t, "--config", cfg, "config", "init", "--path", fresh); err != nil {
		t.Fatal(err)
	}
	if _, _, err := config.LoadFromPath(fresh); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("export:\n  paper: B5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "--config", path, "parse-qr", "SN:1;MODEL:X"); err == nil {
		t.Error("expected invalid config error")
	}
}

func TestPlanImagePath(t *testing.T) {
	tests := []struct {
		plan domain.FloorPlan
		want string
	}{
		{domain.FloorPlan{}, ""},
		{domain.FloorPlan{Path: "plan.png"}, filepath.Join("site", "plan.png")},
		{domain.FloorPlan{Path: "/abs/plan.png"}, "/abs/plan.png"},
		{domain.FloorPlan{Path: "plan.png", Data: []byte{1}}, ""},
	}
	for _, tt := range tests {
		if got := planImagePath(filepath.Join("site", "a.sdp"), tt.plan); got != tt.want {
			t.Errorf("planImagePath(%+v) = %q, want %q", tt.plan, got, tt.want)
		}
	}
}
