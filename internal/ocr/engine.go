package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

const (
	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
)

// Engine recognizes the text of one raster image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// engineFactories is extended by build-tagged files.
var engineFactories = map[string]func(cfg Config, r Runner, logger *slog.Logger) (Engine, error){
	EngineTesseract: func(cfg Config, r Runner, logger *slog.Logger) (Engine, error) {
		return &cliEngine{cfg: cfg, runner: r, logger: logger}, nil
	},
}

func newEngine(cfg Config, r Runner, logger *slog.Logger) (Engine, error) {
	f, ok := engineFactories[cfg.Engine]
	if !ok {
		return nil, fmt.Errorf("ocr engine %q not compiled in", cfg.Engine)
	}
	return f(cfg, r, logger)
}

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-=]{3,}\s*$`)

// cliEngine shells out to the tesseract binary.
type cliEngine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func (c *cliEngine) Name() string { return EngineTesseract }

func (c *cliEngine) Recognize(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D]
	args := []string{path, "stdout", "-l", c.cfg.TesseractLang}
	if c.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", c.cfg.PSM))
	}
	if c.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", c.cfg.OEM))
	}
	if c.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.cfg.TessdataDir)
	}
	out, _, err := c.runner.Run(ctx, c.cfg.Tesseract, c.logger, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	// table rules come out as runs of dashes; drop them
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
