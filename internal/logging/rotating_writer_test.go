package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cipher-rooms/internal/config"

	"github.com/rs/zerolog/log"
)

func TestRotatingWriterKeepsOneBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writer, err := newRotatingWriter(path, 1)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()

	chunk := make([]byte, 512*1024)
	for i := 0; i < 3; i++ {
		if _, err := writer.Write(chunk); err != nil {
			t.Fatalf("write chunk %d: %v", i, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat log: %v", err)
	}
	if info.Size() != 512*1024 {
		t.Fatalf("log size = %d, want %d", info.Size(), 512*1024)
	}
	backup, err := os.Stat(path + ".1")
	if err != nil {
		t.Fatalf("stat backup: %v", err)
	}
	if backup.Size() != 1024*1024 {
		t.Fatalf("backup size = %d, want %d", backup.Size(), 1024*1024)
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	if err := Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1}); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer Close()

	log.Info().Str("session_id", "7").Msg("hello")
	if _, err := Writer().Write([]byte("{\"raw\":true}\n")); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"session_id":"7"`) || !strings.Contains(string(b), `"raw":true`) {
		t.Fatalf("log contents = %q", b)
	}
}
