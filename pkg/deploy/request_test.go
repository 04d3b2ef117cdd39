package deploy_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ivyci/enginectl/pkg/deploy"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestNewRequest_Defaults(t *testing.T) {
	f := newFixture(t)

	req, err := deploy.NewRequest(deploy.RequestSpec{
		Source:      f.artifact,
		DeployDir:   f.deployDir,
		Application: "SYSTEM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Timeout() != deploy.DefaultTimeout {
		t.Errorf("expected default timeout, got %v", req.Timeout())
	}
	if req.PollInterval() != deploy.DefaultPollInterval {
		t.Errorf("expected default poll interval, got %v", req.PollInterval())
	}
	if !strings.HasPrefix(req.ID(), "dep_") {
		t.Errorf("expected generated deployment id, got %s", req.ID())
	}
	if req.HasOptions() {
		t.Error("expected no options")
	}
	if got, want := req.Target(), filepath.Join(f.deployDir, "SYSTEM", "app.pkg"); got != want {
		t.Errorf("expected target %s, got %s", want, got)
	}
	if got := req.RelativeTarget(); got != filepath.Join("SYSTEM", "app.pkg") {
		t.Errorf("unexpected relative target %s", got)
	}
}

func TestNewRequest_OptionsAreCopied(t *testing.T) {
	f := newFixture(t)
	options := []byte("deployTestUsers: true\n")

	req, err := deploy.NewRequest(deploy.RequestSpec{
		Source:        f.artifact,
		DeployDir:     f.deployDir,
		Application:   "SYSTEM",
		Options:       options,
		OptionsFormat: ".json",
		Timeout:       time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	options[0] = 'X'
	if string(req.Options()) != "deployTestUsers: true\n" {
		t.Error("request must not share the caller's options buffer")
	}
	if req.OptionsFormat() != "json" {
		t.Errorf("expected json format, got %s", req.OptionsFormat())
	}
	if !strings.HasSuffix(req.OptionsPath(), "app.pkg.options.json") {
		t.Errorf("unexpected options path %s", req.OptionsPath())
	}
}

func TestNewRequest_EmptyOptionsStillDelivered(t *testing.T) {
	f := newFixture(t)
	req, err := deploy.NewRequest(deploy.RequestSpec{
		Source:      f.artifact,
		DeployDir:   f.deployDir,
		Application: "SYSTEM",
		Options:     []byte{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.HasOptions() {
		t.Error("an empty non-nil payload is still an options file")
	}
}

func TestNewRequest_Preconditions(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		spec deploy.RequestSpec
	}{
		{"missing source", deploy.RequestSpec{Source: f.artifact + ".missing", DeployDir: f.deployDir, Application: "SYSTEM"}},
		{"missing deploy dir", deploy.RequestSpec{Source: f.artifact, DeployDir: f.deployDir + "-missing", Application: "SYSTEM"}},
		{"deploy dir is a file", deploy.RequestSpec{Source: f.artifact, DeployDir: f.artifact, Application: "SYSTEM"}},
		{"empty source", deploy.RequestSpec{DeployDir: f.deployDir, Application: "SYSTEM"}},
		{"empty application", deploy.RequestSpec{Source: f.artifact, DeployDir: f.deployDir}},
		{"nested application", deploy.RequestSpec{Source: f.artifact, DeployDir: f.deployDir, Application: "a/b"}},
		{"parent application", deploy.RequestSpec{Source: f.artifact, DeployDir: f.deployDir, Application: ".."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deploy.NewRequest(tt.spec)
			if !errors.Is(err, deploy.ErrPreconditionFailed) {
				t.Errorf("expected ErrPreconditionFailed, got %v", err)
			}
		})
	}
}

func TestMarkers(t *testing.T) {
	m := deploy.MarkersFor("/d/SYSTEM/app.pkg")

	cases := map[string]string{
		m.Deployed():       "/d/SYSTEM/app.pkg.deployed",
		m.Log():            "/d/SYSTEM/app.pkg.deploymentLog",
		m.Error():          "/d/SYSTEM/app.pkg.deploymentError",
		m.Trigger():        "/d/SYSTEM/app.pkg.doDeploy",
		m.Options(""):      "/d/SYSTEM/app.pkg.options.yaml",
		m.Options(".json"): "/d/SYSTEM/app.pkg.options.json",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
	if n := len(m.Companions()); n != 4 {
		t.Errorf("expected 4 companions, got %d", n)
	}
}

func TestMarkers_StaleOptions(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "app.pkg")
	writeFile(t, artifact+".options.yaml", "a")
	writeFile(t, artifact+".options.json", "b")
	writeFile(t, filepath.Join(dir, "other.pkg.options.yaml"), "c")

	stale := deploy.MarkersFor(artifact).StaleOptions()
	if len(stale) != 2 {
		t.Fatalf("expected 2 stale options files, got %v", stale)
	}
	for _, p := range stale {
		if !strings.HasPrefix(filepath.Base(p), "app.pkg.options.") {
			t.Errorf("unexpected stale file %s", p)
		}
	}
}
