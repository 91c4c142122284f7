package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.GRPCAddr != ":8080" || cfg.Server.HTTPAddr != ":8000" {
		t.Errorf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Queue.Workers != 4 || cfg.Queue.ProcessTimeout != 3*time.Minute {
		t.Errorf("unexpected queue defaults %+v", cfg.Queue)
	}
	if cfg.Database.IsPostgres() {
		t.Error("default database should be sqlite")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labreports.yaml")
	doc := `
database:
  dsn: postgres://u:p@localhost:5432/labs
queue:
  workers: 2
extract:
  fail_on_empty: true
watch:
  roots: [/srv/inbox]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LABREPORTS_QUEUE_WORKERS", "7")
	t.Setenv("LABREPORTS_OCR_MAX_PAGES", "3")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Database.IsPostgres() {
		t.Error("expected postgres DSN from file")
	}
	if cfg.Queue.Workers != 7 {
		t.Errorf("expected env to override workers, got %d", cfg.Queue.Workers)
	}
	if cfg.OCR.MaxPages != 3 {
		t.Errorf("expected max pages 3, got %d", cfg.OCR.MaxPages)
	}
	if !cfg.Extract.FailOnEmpty {
		t.Error("expected fail_on_empty from file")
	}
	if len(cfg.Watch.Roots) != 1 || cfg.Watch.Roots[0] != "/srv/inbox" {
		t.Errorf("unexpected watch roots %v", cfg.Watch.Roots)
	}
	if strings.Contains(cfg.Database.String(), "u:p") {
		t.Error("database config must not print credentials")
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("queue: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{DSN: ""},
		Server:   ServerConfig{GRPCAddr: ":1", HTTPAddr: ":2", MaxUploadBytes: 1},
		OCR:      OCRConfig{Engine: "paddle"},
		Queue:    QueueConfig{Workers: 0},
		Log:      LogConfig{Level: "info", Format: "xml"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput cause, got %v", err)
	}
	for _, field := range []string{"database.dsn", "ocr.engine", "queue.workers", "log.format"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected %s in %q", field, err.Error())
		}
	}
}

func TestUserMessageAndCodes(t *testing.T) {
	tests := []struct {
		err  error
		msg  string
		code codes.Code
	}{
		{fmt.Errorf("ocr: %w", ErrUnsupported), MsgUnsupportedFile, codes.InvalidArgument},
		{fmt.Errorf("ocr: %w", ErrNoText), MsgNoText, codes.Internal},
		{ErrNoRecords, MsgNoRecords, codes.Internal},
		{NewAppError("NOT_FOUND", "report not found", ErrNotFound), "report not found", codes.NotFound},
		{errors.New("boom"), "boom", codes.Internal},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.msg {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.msg)
		}
		if got := GRPCCode(tt.err); got != tt.code {
			t.Errorf("GRPCCode(%v) = %v, want %v", tt.err, got, tt.code)
		}
	}
	if ToGRPC(nil) != nil {
		t.Error("ToGRPC(nil) must be nil")
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.Field("filename", "", Required)
	v.Field("content", []byte{}, Required)
	v.Field("name", "abcdef", MaxLength(3))
	v.Field("id", "not-a-uuid", UUID)
	if len(v.Errors()) != 4 {
		t.Fatalf("expected 4 errors, got %d: %s", len(v.Errors()), v.ErrorMessage())
	}
	if !errors.Is(v.Error(), ErrInvalidInput) {
		t.Error("expected ErrInvalidInput")
	}
	if NewValidator().Field("name", "ok", Required, MaxLength(3)).Error() != nil {
		t.Error("expected no error for valid input")
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("report_id", " 9b2f3c4e-1a2b-4c3d-8e9f-0a1b2c3d4e5f ")
	if err != nil || id.String() != "9b2f3c4e-1a2b-4c3d-8e9f-0a1b2c3d4e5f" {
		t.Fatalf("ParseID = %v, %v", id, err)
	}
	for _, raw := range []string{"", "nope"} {
		_, err := ParseID("report_id", raw)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseID(%q) err = %v, want ErrInvalidInput", raw, err)
		}
		if UserMessage(err) != "report_id must be a UUID" {
			t.Errorf("UserMessage = %q", UserMessage(err))
		}
	}
}

func TestRequestContext(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" || RequestIDFromContext(ctx) != id {
		t.Fatalf("expected generated request id, got %q", id)
	}
	if _, again := EnsureRequestID(ctx); again != id {
		t.Errorf("expected existing id to be kept, got %q", again)
	}

	l := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if LoggerFromContext(WithLogger(ctx, l), nil) != l {
		t.Error("expected logger from context")
	}
	if LoggerFromContext(ctx, nil) == nil {
		t.Error("expected default logger fallback")
	}
}
