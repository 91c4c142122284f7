package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/labreports/internal/common"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExtractTextCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "Hemoglobin: 18 g/dL\nGlucose: 80 mg/dL\n", "extract-text")
	if err != nil {
		t.Fatalf("extract-text: %v", err)
	}
	var env processor.Envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !env.Success || len(env.Data) != 2 {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Data[0].Status != "Needs Attention" || env.Data[1].Status != "Normal" {
		t.Errorf("statuses = %s, %s", env.Data[0].Status, env.Data[1].Status)
	}
}

func TestExtractTextCommand_CustomTable(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	table := "parameters:\n  - name: Glucose\n    low: 60\n    high: 75\n    unit: mg/dL\n"
	if err := os.WriteFile(filepath.Join(dir, "ranges.yaml"), []byte(table), 0o600); err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(dir, "ocr.txt")
	if err := os.WriteFile(input, []byte("Glucose: 80 mg/dL"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LABREPORTS_EXTRACT_REFERENCE_TABLE", filepath.Join(dir, "ranges.yaml"))

	out, err := run(t, "", "extract-text", input)
	if err != nil {
		t.Fatalf("extract-text: %v", err)
	}
	if !strings.Contains(out, `"range": "60 - 75 mg/dL"`) || !strings.Contains(out, `"status": "Needs Attention"`) {
		t.Errorf("output = %s", out)
	}
}

func TestExtractTextCommand_Empty(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := run(t, "   \n", "extract-text", "-")
	if err == nil {
		t.Fatal("expected failure for blank input")
	}
	if !strings.Contains(out, "No text extracted from file.") {
		t.Errorf("output = %s", out)
	}
}

func TestExtractTextCommand_FailOnEmpty(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "Patient: Jane Doe\n", "extract-text")
	if err != nil {
		t.Fatalf("default policy should succeed: %v", err)
	}
	if !strings.Contains(out, `"data": []`) {
		t.Errorf("output = %s", out)
	}

	t.Setenv("LABREPORTS_EXTRACT_FAIL_ON_EMPTY", "true")
	out, err = run(t, "Patient: Jane Doe\n", "extract-text")
	if err == nil {
		t.Fatal("expected failure with fail_on_empty")
	}
	if !strings.Contains(out, "No parameters recognized in document.") || strings.Contains(out, `"data"`) {
		t.Errorf("output = %s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "labreports "+GitRelease) {
		t.Errorf("output = %q", out)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(common.LogConfig{Level: "warn", Format: "text"}, &buf).Info("hidden")
	newLogger(common.LogConfig{Level: "warn", Format: "text"}, &buf).Warn("shown", "k", "v")
	got := buf.String()
	if strings.Contains(got, "hidden") || !strings.Contains(got, "msg=shown k=v") {
		t.Errorf("text output = %q", got)
	}
	if strings.Contains(got, "level=") || strings.Contains(got, "time=") {
		t.Errorf("text output should drop time and level: %q", got)
	}

	buf.Reset()
	newLogger(common.LogConfig{Level: "bogus", Format: "json"}, &buf).Info("x")
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("json output %q: %v", buf.String(), err)
	}
	if m["level"] != slog.LevelInfo.String() {
		t.Errorf("level = %v", m["level"])
	}
}
