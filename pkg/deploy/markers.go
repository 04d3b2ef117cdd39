package deploy

import (
	"os"
	"path/filepath"
	"strings"
)

// File name suffixes shared with the engine. They must not change.
const (
	DeployedSuffix = ".deployed"
	LogSuffix      = ".deploymentLog"
	ErrorSuffix    = ".deploymentError"
	TriggerSuffix  = ".doDeploy"
	optionsInfix   = ".options."
)

// DefaultOptionsFormat is the extension of a generated options file
const DefaultOptionsFormat = "yaml"

// Markers names the companion files of one artifact in the drop directory
type Markers struct {
	Artifact string
}

// MarkersFor returns the markers of the artifact at path
func MarkersFor(artifact string) Markers {
	return Markers{Artifact: artifact}
}

// Deployed is the flag file whose existence signals completion
func (m Markers) Deployed() string { return m.Artifact + DeployedSuffix }

// Log is the free-form log the engine writes while processing
func (m Markers) Log() string { return m.Artifact + LogSuffix }

// Error is written by the engine instead of, or next to, the log when the deployment failed
func (m Markers) Error() string { return m.Artifact + ErrorSuffix }

// Trigger is the marker used by the legacy marker-file handshake
func (m Markers) Trigger() string { return m.Artifact + TriggerSuffix }

// Options is the options sibling for the given file format ("yaml", "json", ...)
func (m Markers) Options(format string) string {
	if format == "" {
		format = DefaultOptionsFormat
	}
	return m.Artifact + optionsInfix + strings.TrimPrefix(format, ".")
}

// Companions are the files an earlier run may have left next to the artifact
func (m Markers) Companions() []string {
	return []string{m.Deployed(), m.Log(), m.Error(), m.Trigger()}
}

// StaleOptions lists existing options siblings of the artifact, whatever their format
func (m Markers) StaleOptions() []string {
	dir, base := filepath.Split(m.Artifact)
	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return nil
	}

	prefix := base + optionsInfix
	var stale []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			stale = append(stale, filepath.Join(dir, e.Name()))
		}
	}
	return stale
}
