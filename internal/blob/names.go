// Package blob stores the files that storage-bound collection properties
// point at, and offers the helpers the storage browser needs.
package blob

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/pitabwire/cmsadmin/model"
)

// FolderPlaceholder is the empty object that keeps an otherwise empty folder
// listed. It is never shown in listings.
const FolderPlaceholder = ".keep"

// Folder name rule codes.
const (
	RuleFolderNameRequired = "FOLDER_NAME_REQUIRED"
	RuleFolderNameNoSlash  = "FOLDER_NAME_NO_SLASH"
	RuleFolderNameChars    = "FOLDER_NAME_CHARS"
)

var folderNameReplacer = regexp.MustCompile(`(^[\\.]+)|[^a-zA-Z0-9_-]`)

// ValidateFolderName checks a user-entered folder name and returns a
// VALIDATION_ERROR describing the first problem, or nil.
func ValidateFolderName(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return model.NewValidationFailure("name", RuleFolderNameRequired, "Folder name is required.")
	case strings.Contains(name, "/"):
		return model.NewValidationFailure("name", RuleFolderNameNoSlash, "Folder name cannot contain '/'.")
	case SanitizeFolderName(name) == "":
		return model.NewValidationFailure("name", RuleFolderNameChars, "Folder name must include letters, numbers, dashes or underscores.")
	}
	return nil
}

// SanitizeFolderName trims name and replaces a leading run of dots and every
// character other than letters, digits, '-' and '_' with '_'.
func SanitizeFolderName(name string) string {
	return folderNameReplacer.ReplaceAllString(strings.TrimSpace(name), "_")
}

// JoinPath joins storage path segments with '/', skipping empty ones.
func JoinPath(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

var sizeUnits = []string{"KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// HumanFileSize renders a byte count with 1024-based units and one decimal,
// e.g. "512 B" or "1.5 MB".
func HumanFileSize(bytes int64) string {
	const thresh = 1024
	if bytes > -thresh && bytes < thresh {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	u := -1
	for {
		value /= thresh
		u++
		if (value < thresh && value > -thresh) || u == len(sizeUnits)-1 {
			break
		}
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[u])
}

// FileExtension returns the lower-cased extension of name without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// IsPreviewable reports whether the storage browser can show name inline.
func IsPreviewable(name string) bool {
	switch FileExtension(name) {
	case "png", "jpg", "jpeg", "gif", "webp", "svg":
		return true
	}
	return false
}
