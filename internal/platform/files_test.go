package platform

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestCreateDirectoryIfNotExists(t *testing.T) {
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "test_dir", "nested")

	if _, err := os.Stat(testDir); !os.IsNotExist(err) {
		t.Fatalf("Test directory already exists: %s", testDir)
	}

	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if _, err := os.Stat(testDir); os.IsNotExist(err) {
		t.Fatalf("Directory was not created: %s", testDir)
	}

	// Second call should not fail
	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to handle existing directory: %v", err)
	}
}

func TestGetHomeDownloadsDir(t *testing.T) {
	downloadsDir, err := GetHomeDownloadsDir()
	if err != nil {
		t.Fatalf("Failed to get downloads directory: %v", err)
	}
	if filepath.Base(downloadsDir) != "Downloads" && downloadsDir != "/sdcard/Download" {
		t.Errorf("Expected directory to end with 'Downloads', got: %s", downloadsDir)
	}
}

func TestRemoveByStem(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"clip-1a2b3c4d.mp4":            "v",
		"clip-1a2b3c4d.f137.mp4.part":  "p",
		"clip-1a2b3c4d.trim.mp4":       "t",
		"clip-1a2b3c4d.jpg":            "j",
		"other-99999999.mp4":           "keep",
		"clip-1a2b3c4d-extra-name.mp4": "keep",
	})

	require.NoError(t, RemoveByStem(dir, "clip-1a2b3c4d"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"other-99999999.mp4", "clip-1a2b3c4d-extra-name.mp4"}, names)

	assert.NoError(t, RemoveByStem(filepath.Join(dir, "missing"), "clip"), "missing directory is not an error")
}

func TestRemoveExcept(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a-00000000.webm":      "raw",
		"a-00000000.trim.webm": "mid",
		"a-00000000.mp3":       "final",
	})

	require.NoError(t, RemoveExcept(dir, "a-00000000", filepath.Join(dir, "a-00000000.mp3")))

	files, err := StemFiles(dir, "a-00000000")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a-00000000.mp3")}, files)
}

func TestFindDownloadedFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"v-12345678.f137.mp4":  "0123456789abcdef",
		"v-12345678.f140.m4a":  "0123456789",
		"v-12345678.mp4.part":  "0123456789abcdefghij",
		"v-12345678.mp4.ytdl":  "{}",
		"v-12345678.mp4":       "0123",
		"v-12345678.info.temp": "x",
		"w-00000000.mp4":       "0123456789012345678901234567890",
	})

	got, err := FindDownloadedFile(dir, "v-12345678")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "v-12345678.mp4"), got)

	_, err = FindDownloadedFile(dir, "none-00000000")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestIsWorkFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"a.mp4.part", true},
		{"a.mp4.ytdl", true},
		{"a.f251.webm", true},
		{"a.mp4", false},
		{"a.fancy.mp4", false},
		{"a-1.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWorkFile(tt.name); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
