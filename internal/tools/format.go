package tools

import (
	"fmt"
	"strings"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
	"github.com/set-night/imagebroker/internal/service"
)

const maxPromptPreview = 100

// FormatImage renders a successful generate or edit.
func FormatImage(res *service.ImageResult) string {
	var sb strings.Builder

	verb := "generated"
	if res.Record.Kind == domain.MediaEdited {
		verb = "edited"
	}
	fmt.Fprintf(&sb, "Image %s and saved to: %s\n", verb, res.Record.StoredPath)
	fmt.Fprintf(&sb, "Aspect ratio: %s\n", res.Ratio)
	fmt.Fprintf(&sb, "Session: %s (reference it as %s or \"last\", %d/%d in history)",
		res.SessionID, service.HistoryRef(res.HistoryIndex), res.HistoryIndex+1, config.MaxHistory)

	if res.HistoryImages > 0 {
		fmt.Fprintf(&sb, "\nUsed %d previous image(s) for consistency.", res.HistoryImages)
	}
	if res.References > 0 {
		fmt.Fprintf(&sb, "\nUsed %d reference image(s).", res.References)
	}
	if text := strings.TrimSpace(res.Text); text != "" {
		sb.WriteString("\n\nModel response: " + text)
	}
	if summary := res.Grounding.Summary(); summary != "" {
		sb.WriteString("\n\n" + summary)
	}
	writeWarnings(&sb, res.Warnings)
	return sb.String()
}

func FormatChat(res *service.ChatResult) string {
	var sb strings.Builder
	sb.WriteString(res.Text)
	writeWarnings(&sb, res.Warnings)
	return sb.String()
}

// FormatHistory lists records oldest first with their history reference.
func FormatHistory(sessionID string, records []domain.MediaRecord) string {
	sessionID = service.NormalizeKey(sessionID)
	if len(records) == 0 {
		return fmt.Sprintf("No images in history for session %q.", sessionID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Image history for session %q (%d/%d):", sessionID, len(records), config.MaxHistory)
	for i, rec := range records {
		fmt.Fprintf(&sb, "\n\n[%d] %s (%s, %s)", i, service.HistoryRef(i), rec.Kind, rec.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&sb, "\n    path: %s", rec.StoredPath)
		fmt.Fprintf(&sb, "\n    prompt: %s", preview(rec.Prompt))
	}
	return sb.String()
}

func FormatRatio(sessionID string, ratio domain.Ratio) string {
	return fmt.Sprintf("Aspect ratio for session %q set to %s.", service.NormalizeKey(sessionID), ratio)
}

func FormatCleared(sessionID string) string {
	return fmt.Sprintf("Session %q cleared: transcript, image history and aspect ratio were reset.", service.NormalizeKey(sessionID))
}

// FormatError renders err for a failed call. Sentinel text names the
// category.
func FormatError(err error) string {
	return "Error: " + err.Error()
}

func writeWarnings(sb *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	sb.WriteString("\n\nWarnings:")
	for _, w := range warnings {
		sb.WriteString("\n- " + w)
	}
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxPromptPreview {
		return string(r[:maxPromptPreview]) + "..."
	}
	return s
}
