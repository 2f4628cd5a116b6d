package stage

import (
	"fmt"
	"strings"

	"bookpub/internal/queue"
	"bookpub/internal/services"
)

// RequireField returns a services.ErrValidation naming field when value is
// blank.
func RequireField(stageName, field, value string) error {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return services.Wrap(services.ErrValidation, stageName, "prepare",
		fmt.Sprintf("%s is required", field), nil)
}

// RequireFile returns services.ErrFilesUnavailable when the named buffer is
// not loaded, which happens when a resumed session lost its files.
func RequireFile(stageName, label string, ref *queue.FileRef) error {
	if ref.Loaded() {
		return nil
	}
	name := label
	if ref != nil && ref.Name != "" {
		name = fmt.Sprintf("%s %q", label, ref.Name)
	}
	return services.Wrap(services.ErrFilesUnavailable, stageName, "prepare",
		name+" is not loaded; re-supply files", nil)
}
