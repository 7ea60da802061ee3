package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Pattern returns size bytes of a position-dependent pattern seeded by seed so
// two payloads of the same size differ.
func Pattern(size int, seed byte) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(i%251) ^ seed
	}
	return out
}

// WriteAged writes data to path and backdates its modification time by age,
// which is how tests simulate temp files left behind by a crashed process.
func WriteAged(t testing.TB, path string, data []byte, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("age %s: %v", path, err)
	}
}
