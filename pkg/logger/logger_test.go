package logger_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	pcontext "github.com/ivyci/enginectl/pkg/context"
	"github.com/ivyci/enginectl/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_WithTarget(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.WithTarget("app.iar").Info("uploading")

	output := buf.String()
	if !strings.Contains(output, "[app.iar] uploading") {
		t.Errorf("expected target prefix in log output, got %q", output)
	}
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Info("deployed",
		logger.WithField("zeta", 1),
		logger.WithField("alpha", "x"),
	)

	output := buf.String()
	if !strings.Contains(output, "{alpha=x, zeta=1}") {
		t.Errorf("expected sorted fields, got %q", output)
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Error("copy failed", logger.WithError(errors.New("disk full")))

	if !strings.Contains(buf.String(), "error=disk full") {
		t.Errorf("expected error field, got %q", buf.String())
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Success("deployment finished")

	if !strings.Contains(buf.String(), "deployment finished") {
		t.Error("expected success message in log output")
	}
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("error", &buf)

	log.Debug("should not appear")
	log.Info("should not appear")
	log.Warn("should not appear")
	log.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("lower level logs should not appear with error level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("error level log should appear")
	}
}

func TestLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("loud", &buf)

	log.Debug("hidden")
	log.Info("visible")

	output := buf.String()
	if strings.Contains(output, "hidden") || !strings.Contains(output, "visible") {
		t.Errorf("expected info level fallback, got %q", output)
	}
}

func TestWithContext_AddsDeploymentID(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("info", &buf)

	ctx := pcontext.WithDeploymentID(context.Background(), "dep_123")
	ctx = pcontext.WithOperation(ctx, "deploy")
	logger.WithContext(ctx, base).Info("placed artifact")

	output := buf.String()
	if !strings.Contains(output, "deployment_id=dep_123") {
		t.Errorf("expected deployment id in output, got %q", output)
	}
	if !strings.Contains(output, "operation=deploy") {
		t.Errorf("expected operation in output, got %q", output)
	}
}

func TestWithContext_KeepsFieldsAcrossTargets(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("debug", &buf)

	ctx := pcontext.WithDeploymentID(context.Background(), "dep_456")
	log := logger.WithContext(ctx, base).WithTarget("engine")
	log.Warn("slow handshake", logger.WithField("pid", 42))
	log.Debug("polling")

	output := buf.String()
	if strings.Count(output, "deployment_id=dep_456") != 2 {
		t.Errorf("expected deployment id on both lines, got %q", output)
	}
	if !strings.Contains(output, "pid=42") {
		t.Errorf("expected call fields to be kept, got %q", output)
	}
}

func TestNopLogger(t *testing.T) {
	log := logger.OrNop(nil)
	log.Info("discarded")
	log.WithTarget("x").Error("discarded")
}
