package options_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivyci/enginectl/pkg/options"
)

func TestSettings_DefaultsGenerateNothing(t *testing.T) {
	r, err := options.Render("", options.Settings{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Data != nil {
		t.Errorf("expected no options for defaults, got %q", r.Data)
	}

	r, err = options.Render("", options.DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Data != nil {
		t.Errorf("expected no options for explicit defaults, got %q", r.Data)
	}
}

func TestSettings_OnlyNonDefaultsAreWritten(t *testing.T) {
	s := options.Settings{
		TestUsers:     true,
		ConfigCleanup: "REMOVE_UNUSED",
		TargetState:   "ACTIVE_AND_RELEASED",
		TargetVersion: "RELEASED",
	}

	r, err := options.Render("", s, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `deployTestUsers: true
configuration:
  cleanup: REMOVE_UNUSED
target:
  version: RELEASED
`
	if string(r.Data) != expected {
		t.Errorf("unexpected options:\n%s\nexpected:\n%s", r.Data, expected)
	}
	if r.Format != "yaml" {
		t.Errorf("expected yaml format, got %s", r.Format)
	}

	p, err := options.Parse(r.Data)
	if err != nil {
		t.Fatalf("generated options do not parse: %v", err)
	}
	if p.Target == nil || p.Target.State != "" {
		t.Errorf("default target state must be omitted, got %+v", p.Target)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       options.Settings
		wantErr bool
	}{
		{"defaults", options.Settings{}, false},
		{"all set", options.Settings{ConfigCleanup: "REMOVE_ALL", TargetState: "INACTIVE", TargetFileFormat: "EXPANDED", TargetVersion: "RELEASED"}, false},
		{"bad cleanup", options.Settings{ConfigCleanup: "SOMETIMES"}, true},
		{"bad state", options.Settings{TargetState: "released"}, true},
		{"bad format", options.Settings{TargetFileFormat: "ZIP"}, true},
		{"blank version", options.Settings{TargetVersion: "  "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr && !errors.Is(err, options.ErrInvalidOption) {
				t.Errorf("expected ErrInvalidOption, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFill(t *testing.T) {
	tmpl := []byte("deployTestUsers: ${deploy.test.users}\ntarget:\n  state: ${deploy.target.state}\n  version: ${custom.version}\n")
	props := options.Settings{TestUsers: true, TargetState: "ACTIVE"}.Properties()

	out := string(options.Fill(tmpl, props))

	if !strings.Contains(out, "deployTestUsers: true") {
		t.Errorf("expected test users substituted, got %q", out)
	}
	if !strings.Contains(out, "state: ACTIVE\n") {
		t.Errorf("expected state substituted, got %q", out)
	}
	if !strings.Contains(out, "${custom.version}") {
		t.Errorf("unknown placeholders must be left untouched, got %q", out)
	}
	if got := options.Unresolved([]byte(out)); len(got) != 1 || got[0] != "custom.version" {
		t.Errorf("expected custom.version unresolved, got %v", got)
	}
}

func TestRender_Template(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deploy.options.yaml")
	os.WriteFile(path, []byte("deployTestUsers: ${deploy.test.users}\ntarget:\n  version: ${release}\n"), 0644)

	r, err := options.Render(path, options.Settings{TestUsers: true}, map[string]string{"release": "RELEASED"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(r.Data) != "deployTestUsers: true\ntarget:\n  version: RELEASED\n" {
		t.Errorf("unexpected rendered template %q", r.Data)
	}
	if len(r.Unresolved) != 0 {
		t.Errorf("expected all placeholders resolved, got %v", r.Unresolved)
	}
}

func TestRender_TemplateFormatAndErrors(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "options.json")
	os.WriteFile(jsonPath, []byte(`{"deployTestUsers": ${deploy.test.users}}`), 0644)
	r, err := options.Render(jsonPath, options.Settings{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Format != "json" {
		t.Errorf("expected json format, got %s", r.Format)
	}

	broken := filepath.Join(dir, "broken.yaml")
	os.WriteFile(broken, []byte("target: [unclosed\n"), 0644)
	if _, err := options.Render(broken, options.Settings{}, nil); !errors.Is(err, options.ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate, got %v", err)
	}

	if _, err := options.Render(filepath.Join(dir, "missing.yaml"), options.Settings{}, nil); err == nil {
		t.Error("expected error for missing template")
	}
}

func TestFormatOf(t *testing.T) {
	cases := map[string]string{
		"opts.yaml": "yaml",
		"opts.YML":  "yml",
		"opts.json": "json",
		"opts":      "yaml",
	}
	for path, want := range cases {
		if got := options.FormatOf(path); got != want {
			t.Errorf("FormatOf(%s) = %s, expected %s", path, got, want)
		}
	}
}

func TestUnresolved_TrimsKeys(t *testing.T) {
	tmpl := []byte("a: ${ custom.version }\nb: ${custom.version}\nc: ${ deploy.test.users }\n")

	filled := options.Fill(tmpl, map[string]string{"deploy.test.users": "true"})
	got := options.Unresolved(filled)

	if len(got) != 1 || got[0] != "custom.version" {
		t.Errorf("expected trimmed unique key custom.version, got %q", got)
	}
	if !strings.Contains(string(filled), "c: true") {
		t.Errorf("expected padded placeholder filled, got %q", filled)
	}
}
