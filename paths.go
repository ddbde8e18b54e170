package ioc

import (
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var (
	pathsMu          sync.RWMutex
	appDir           string
	pathPlaceholders = map[string]func() string{
		"{home}":   func() string { d, _ := os.UserHomeDir(); return d },
		"{temp}":   os.TempDir,
		"{config}": func() string { d, _ := os.UserConfigDir(); return d },
		"{cache}":  func() string { d, _ := os.UserCacheDir(); return d },
		"{appDir}": ApplicationDir,
	}
)

// RegisterPathPlaceholder adds or replaces a placeholder such as "{data}".
// The resolver is evaluated on every expansion.
func RegisterPathPlaceholder(placeholder string, resolve func() string) {
	pathsMu.Lock()
	defer pathsMu.Unlock()
	pathPlaceholders[placeholder] = resolve
}

// SetApplicationDir overrides the directory relative paths are resolved
// against. By default it is the directory of the running executable.
func SetApplicationDir(dir string) {
	pathsMu.Lock()
	defer pathsMu.Unlock()
	appDir = dir
}

// ApplicationDir returns the directory relative paths are resolved against.
func ApplicationDir() string {
	pathsMu.RLock()
	dir := appDir
	pathsMu.RUnlock()
	if dir != "" {
		return dir
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ExpandPath replaces path placeholders and makes the result absolute.
// Placeholders whose resolver returns "" are left untouched. Paths starting
// with ./ or ../ and file:// URLs are resolved against ApplicationDir; other
// relative paths are returned cleaned but otherwise unchanged.
func ExpandPath(path string) string {
	pathsMu.RLock()
	keys := slices.Sorted(maps.Keys(pathPlaceholders))
	resolvers := maps.Clone(pathPlaceholders)
	pathsMu.RUnlock()

	for _, key := range keys {
		if !strings.Contains(path, key) {
			continue
		}
		if value := resolvers[key](); value != "" {
			path = strings.ReplaceAll(path, key, value)
		}
	}

	var fileURL bool
	if u, err := url.Parse(path); err == nil && u.Scheme == "file" {
		fileURL = true
		path = u.Path
		if path == "" {
			path = u.Opaque
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if fileURL || strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." || path == ".." {
		return filepath.Join(ApplicationDir(), path)
	}
	return filepath.Clean(path)
}
