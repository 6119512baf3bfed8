package ingest

import (
	"path/filepath"
	"strings"
)

var defaultExts = map[string]struct{}{
	"txt": {},
	"sms": {},
}

// NormalizeExt lowercases an extension and drops the leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ExtSet builds an extension set from a list such as "txt,.sms". Empty input yields the defaults.
func ExtSet(exts []string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, e := range exts {
		if e = NormalizeExt(e); e != "" {
			out[e] = struct{}{}
		}
	}
	if len(out) == 0 {
		return defaultExts
	}
	return out
}

// AllowedExt checks path's extension against exts (defaults to txt/sms).
func AllowedExt(path string, exts map[string]struct{}) bool {
	if exts == nil {
		exts = defaultExts
	}
	_, ok := exts[NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
