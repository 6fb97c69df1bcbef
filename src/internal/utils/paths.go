package utils

import "path/filepath"

// GetAbsolutePath returns path unchanged if it is absolute, otherwise resolves
// it against baseDir. Config-relative paths (rule file, socket) go through here.
func GetAbsolutePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Clean(filepath.Join(baseDir, path))
}
