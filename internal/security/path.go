package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var descriptorPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidateDescriptor checks that a media descriptor is a lowercase sha256 hex
// string, the only shape the store ever assigns. Anything else is rejected
// before it can reach the filesystem.
func ValidateDescriptor(id string) error {
	if !descriptorPattern.MatchString(id) {
		return fmt.Errorf("invalid media descriptor: %q", id)
	}
	return nil
}

// ValidateFilePath validates that a file path doesn't contain directory
// traversal attempts.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(filepath.Clean(path), "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}
	return nil
}

// ValidateFilePathWithBase validates that path, resolved against baseDir,
// stays within baseDir.
func ValidateFilePathWithBase(path, baseDir string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}
	cleanPath := filepath.Clean(filepath.Join(baseDir, path))
	cleanBase := filepath.Clean(baseDir)
	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path escapes base directory: %s", path)
	}
	return nil
}
