package ioc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandPath(t *testing.T) {
	appDir := t.TempDir()
	SetApplicationDir(appDir)
	t.Cleanup(func() { SetApplicationDir("") })

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"home placeholder", "{home}/plugins/a.so", filepath.Join(home, "plugins", "a.so")},
		{"temp placeholder", "{temp}/a.so", filepath.Join(os.TempDir(), "a.so")},
		{"app dir placeholder", "{appDir}/a.so", filepath.Join(appDir, "a.so")},
		{"dot relative", "./plugins/a.so", filepath.Join(appDir, "plugins", "a.so")},
		{"parent relative", "../a.so", filepath.Join(appDir, "..", "a.so")},
		{"file url", "file:///opt/a.so", "/opt/a.so"},
		{"relative file url", "file:plugins/a.so", filepath.Join(appDir, "plugins", "a.so")},
		{"absolute", "/opt//plugins/../a.so", "/opt/a.so"},
		{"bare relative", "plugins/a.so", "plugins/a.so"},
		{"unknown placeholder", "{nowhere}/a.so", "{nowhere}/a.so"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestRegisterPathPlaceholder(t *testing.T) {
	dir := t.TempDir()
	RegisterPathPlaceholder("{data}", func() string { return dir })
	assert.Equal(t, filepath.Join(dir, "x.so"), ExpandPath("{data}/x.so"))

	RegisterPathPlaceholder("{empty}", func() string { return "" })
	assert.Equal(t, "{empty}/x.so", ExpandPath("{empty}/x.so"), "placeholders resolving to nothing are kept")
}

func TestApplicationDirDefaultsToExecutable(t *testing.T) {
	SetApplicationDir("")
	exe, err := os.Executable()
	if err != nil {
		t.Skip("executable path unavailable")
	}
	assert.Equal(t, filepath.Dir(exe), ApplicationDir())
}
