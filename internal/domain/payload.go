package domain

import "time"

// TaskPayload is the input needed to execute one beautification task.
type TaskPayload struct {
	// DocumentID identifies the source document in object storage. Optional
	// when InlineHTML carries the content directly.
	DocumentID string `json:"document_id,omitempty"`

	// OutputFormat is the requested output document format (e.g. "html",
	// "docx").
	OutputFormat string `json:"output_format"`

	// Requirements is the user's free-text styling intent, folded into the
	// rewrite instruction.
	Requirements string `json:"requirements,omitempty"`

	// InlineHTML optionally carries the document body inline, taking
	// precedence over DocumentID resolution.
	InlineHTML string `json:"inline_html,omitempty"`

	// ColorizedImages lists pre-colorized image replacements computed
	// upstream; their paths take precedence over restored placeholders.
	ColorizedImages []ColorizedImage `json:"colorized_images,omitempty"`
}

// Validate checks that the payload can drive a task execution.
func (p TaskPayload) Validate() error {
	if p.OutputFormat == "" {
		return ErrEmptyTaskPayload
	}
	if p.DocumentID == "" && p.InlineHTML == "" {
		return ErrEmptyDocument
	}
	return nil
}

// ColorizedImage describes one image that was colorized upstream of this
// pipeline. OriginalSrc identifies the grayscale source as it appears in the
// document; ColorizedPath is the web-servable path of the colorized variant.
type ColorizedImage struct {
	OriginalSrc   string `json:"original_src"`
	ColorizedPath string `json:"colorized_path"`
}

// TaskResult is the structured output of a completed task. A result may be a
// degraded version of the true output when the full result exceeds store
// size limits; the authoritative document always lives in object storage
// under OutputKey.
type TaskResult struct {
	// OutputKey is the object storage key of the rewritten document.
	OutputKey string `json:"output_key"`

	// OutputFilename is the download filename presented to the caller.
	OutputFilename string `json:"output_filename"`

	// DocumentID and OutputFormat echo the input metadata.
	DocumentID   string `json:"document_id,omitempty"`
	OutputFormat string `json:"output_format"`

	// Content optionally carries the rewritten document inline. This is the
	// first field dropped when a result is degraded to fit the store.
	Content string `json:"content,omitempty"`

	// Degraded marks a result that was shrunk to fit store size limits.
	Degraded bool `json:"degraded,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}
