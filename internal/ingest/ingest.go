package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/labreports/constants"
)

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Queued  uint32
	Failed  uint32
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func allowed(path string) bool {
	return constants.IsAllowedExt(filepath.Ext(path))
}
