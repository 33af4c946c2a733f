package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// File extensions of resolver work files that never count as artifacts
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp", ".tmp"}
)

// fragmentPattern matches per-format pieces left before a merge (name.f137.mp4)
var fragmentPattern = regexp.MustCompile(`\.f[0-9]+\.[A-Za-z0-9]+$`)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	if runtime.GOOS == "android" || os.Getenv("ANDROID_DATA") != "" {
		return "/sdcard/Download", nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, "Downloads"), nil
}

// StemFiles lists every file in dir whose name starts with stem followed by a dot
func StemFiles(dir, stem string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), stem+".") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// RemoveByStem deletes every file belonging to stem in dir, including partial
// downloads and intermediates. Missing files are not an error.
func RemoveByStem(dir, stem string) error {
	files, err := StemFiles(dir, stem)
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveExcept deletes every file of stem in dir except the listed paths
func RemoveExcept(dir, stem string, keep ...string) error {
	files, err := StemFiles(dir, stem)
	if err != nil {
		return err
	}
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[filepath.Clean(k)] = true
	}
	var errs []error
	for _, f := range files {
		if kept[filepath.Clean(f)] {
			continue
		}
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsWorkFile reports whether name is a resolver work file or a pre-merge fragment
func IsWorkFile(name string) bool {
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return fragmentPattern.MatchString(name)
}

// FindDownloadedFile returns the finished artifact of stem in dir, ignoring
// work files. With several candidates the largest wins.
func FindDownloadedFile(dir, stem string) (string, error) {
	files, err := StemFiles(dir, stem)
	if err != nil {
		return "", err
	}
	var best string
	var bestSize int64 = -1
	for _, f := range files {
		if IsWorkFile(filepath.Base(f)) {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = f, info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no downloaded file for %s in %s: %w", stem, dir, fs.ErrNotExist)
	}
	return best, nil
}

// FileSize returns the size of path, or 0 when it cannot be read
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
