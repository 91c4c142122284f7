//go:build gosseract

package ocr

import (
	"context"
	"log/slog"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	engineFactories[EngineGosseract] = func(cfg Config, _ Runner, logger *slog.Logger) (Engine, error) {
		return &gosseractEngine{cfg: cfg, logger: logger, clientFactory: gosseract.NewClient}, nil
	}
}

// gosseractEngine links libtesseract in-process instead of spawning the CLI.
type gosseractEngine struct {
	cfg           Config
	logger        *slog.Logger
	clientFactory func() *gosseract.Client
}

func (g *gosseractEngine) Name() string { return EngineGosseract }

func (g *gosseractEngine) Recognize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := g.clientFactory()
	defer c.Close()

	if g.cfg.TessdataDir != "" {
		c.TessdataPrefix = g.cfg.TessdataDir
	}
	if err := c.SetLanguage(g.cfg.TesseractLang); err != nil {
		return "", err
	}
	if g.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
			return "", err
		}
	}
	if err := c.SetImage(path); err != nil {
		return "", err
	}
	txt, err := c.Text()
	if err != nil {
		return "", err
	}
	g.logger.Debug("gosseract ok", "path", path, "bytes", len(txt))
	return reBoxNoise.ReplaceAllString(txt, ""), nil
}
