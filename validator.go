package lineload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// validator handles validation logic for Config
type validator struct{}

// newValidator creates a new validator instance
func newValidator() *validator {
	return &validator{}
}

// validatePath performs basic path hygiene checks
func (v *validator) validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: path contains a null byte", ErrInvalidPath)
	}
	return nil
}

// validateInputFile checks that path names an existing regular file
func (v *validator) validateInputFile(path string) error {
	if err := v.validatePath(path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to stat path %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory: %s", path)
	}
	return nil
}

// validateOutputDirectory checks that the output directory exists.
// An empty directory means the working directory.
func (v *validator) validateOutputDirectory(outputDir string) error {
	if outputDir == "" {
		return nil
	}
	if strings.Contains(outputDir, "\x00") {
		return fmt.Errorf("%w: path contains a null byte", ErrInvalidPath)
	}

	info, err := os.Stat(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("the directory '%s' does not exist", outputDir)
		}
		return fmt.Errorf("failed to check output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path exists but is not a directory: %s", outputDir)
	}
	return nil
}

// normalizeDatabaseName validates a database file name and appends the
// default extension when it is missing.
func (v *validator) normalizeDatabaseName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("database name cannot be empty")
	}
	if filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("database name must be a file name, not a path: %s", name)
	}
	if !isValidFileName(name) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, name)
	}
	return databaseFileName(name), nil
}

// validateConflictPolicy checks the action and every rename candidate
func (v *validator) validateConflictPolicy(policy ConflictPolicy, allowReuse bool, validateName func(string) error) error {
	switch policy.Action {
	case ConflictCancel, ConflictOverwrite, ConflictRename:
	case ConflictReuse:
		if !allowReuse {
			return errors.New("reuse applies to database files only")
		}
	default:
		return fmt.Errorf("unknown conflict action %d", policy.Action)
	}
	for _, name := range policy.RenameTo {
		if err := validateName(strings.TrimSpace(name)); err != nil {
			return fmt.Errorf("rename candidate %q: %w", name, err)
		}
	}
	return nil
}

// isValidFileName checks if a filename is safe to create
func isValidFileName(fileName string) bool {
	// Skip hidden files
	if strings.HasPrefix(fileName, ".") {
		return false
	}

	if strings.Contains(fileName, "\x00") {
		return false
	}

	suspiciousChars := []string{"<", ">", ":", "\"", "|", "?", "*"}
	for _, char := range suspiciousChars {
		if strings.Contains(fileName, char) {
			return false
		}
	}

	return true
}

// truncateForLog limits a value's length to prevent log flooding
func truncateForLog(input string) string {
	const maxLogLength = 200
	if len(input) > maxLogLength {
		return input[:maxLogLength] + "..."
	}
	return input
}
