package vt

import (
	"os"
	"path/filepath"
	"strings"
)

// isHexHash reports whether s is a 32-character lowercase-or-uppercase
// hex string, the shape of the hash suffix in GTP filenames such as
// those resolver.PakPaths.GTPPathPattern produces. Build's own page files are
// named "<name>_<layer>.gtp" and carry no hash.
func isHexHash(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// stripHashSuffix removes a trailing "_<32-hex-chars>" suffix from a
// file stem, if present.
func stripHashSuffix(stem string) string {
	i := strings.LastIndexByte(stem, '_')
	if i < 0 {
		return stem
	}
	if suffix := stem[i+1:]; isHexHash(suffix) {
		return stem[:i]
	}
	return stem
}

// baseName strips a trailing "_N" numeric suffix from name, e.g.
// "Albedo_Normal_Physical_1" -> "Albedo_Normal_Physical".
func baseName(name string) (string, bool) {
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return "", false
	}
	suffix := name[i+1:]
	if suffix == "" {
		return "", false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return name[:i], true
}

// FindGTSFor resolves a GTP (or GTS) path to its paired GTS metadata
// file: a .gts input is returned as-is after checking its magic, a
// NULL-padded/renamed .gts falls back to "<base>_0.gts"; a .gtp input
// strips its hash suffix, tries the exact-name .gts, then
// "<base>_0.gts", then any .gts in the same directory sharing the
// first three underscore-separated name segments.
func FindGTSFor(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dir := filepath.Dir(path)

	switch ext {
	case ".gts":
		if hasGTSMagic(path) {
			return path, nil
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if base, ok := baseName(stem); ok {
			candidate := filepath.Join(dir, base+"_0.gts")
			if fileExists(candidate) {
				return candidate, nil
			}
		}
		return path, nil

	case ".gtp":
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		stripped := stripHashSuffix(stem)

		candidate := filepath.Join(dir, stripped+".gts")
		if fileExists(candidate) && hasGTSMagic(candidate) {
			return candidate, nil
		}

		if base, ok := baseName(stripped); ok {
			candidate = filepath.Join(dir, base+"_0.gts")
			if fileExists(candidate) {
				return candidate, nil
			}
		}

		prefix := firstNSegments(stem, 3)
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if strings.ToLower(filepath.Ext(e.Name())) != ".gts" {
					continue
				}
				name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
				if strings.HasPrefix(name, prefix) {
					full := filepath.Join(dir, e.Name())
					if hasGTSMagic(full) {
						return full, nil
					}
				}
			}
		}
		return "", ErrNoGTSFound

	default:
		return "", ErrNoGTSFound
	}
}

func firstNSegments(s string, n int) string {
	parts := strings.Split(s, "_")
	if len(parts) > n {
		parts = parts[:n]
	}
	return strings.Join(parts, "_")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasGTSMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 4)
	n, _ := f.Read(buf)
	return n == 4 && string(buf) == gtsMagic
}
