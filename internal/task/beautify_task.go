package task

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docpolish/docpolish-api/internal/codec"
	"github.com/docpolish/docpolish-api/internal/domain"
	"github.com/docpolish/docpolish-api/internal/platform/logger"
	"github.com/docpolish/docpolish-api/internal/rewrite"
	"github.com/docpolish/docpolish-api/internal/store"
	"github.com/google/uuid"
)

// Worker executes one beautification task end to end: resolve the document,
// encode placeholders, rewrite, restore, persist, finalize. The worker is
// the single point that decides a task's terminal state; every unrecoverable
// pipeline error becomes a failed transition with a capped error message.
type Worker struct {
	taskStore store.TaskStore
	documents DocumentStorage
	converter DocumentConverter
	codec     *codec.Codec
	rewriter  rewrite.Rewriter
	writer    *TransitionWriter
	logger    *slog.Logger
}

// NewWorker creates a Worker. The converter is optional; without one, a
// resolved artifact that is not HTML fails the task.
func NewWorker(
	taskStore store.TaskStore,
	documents DocumentStorage,
	converter DocumentConverter,
	placeholderCodec *codec.Codec,
	rewriter rewrite.Rewriter,
	writer *TransitionWriter,
	log *slog.Logger,
) (*Worker, error) {
	if taskStore == nil {
		return nil, ErrNilTaskStore
	}
	if documents == nil {
		return nil, ErrNilDocumentStore
	}
	if placeholderCodec == nil {
		return nil, ErrNilCodec
	}
	if rewriter == nil {
		return nil, ErrNilRewriter
	}
	if writer == nil {
		return nil, ErrNilWriter
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	return &Worker{
		taskStore: taskStore,
		documents: documents,
		converter: converter,
		codec:     placeholderCodec,
		rewriter:  rewriter,
		writer:    writer,
		logger:    log,
	}, nil
}

// Execute loads a task by ID and runs it. Fails fast when the task does not
// exist.
func (w *Worker) Execute(ctx context.Context, taskID uuid.UUID) error {
	task, err := w.taskStore.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	return w.ExecuteTask(ctx, task)
}

// ExecuteTask runs an already claimed task. Any unrecoverable pipeline error
// transitions the task to failed; a failed rewrite is a hard task failure,
// never silently substituted with unprocessed content.
func (w *Worker) ExecuteTask(ctx context.Context, task *domain.Task) error {
	log := w.logger.With("task_id", task.ID, "task_type", domain.TaskTypeBeautify)
	ctx = logger.WithLogger(ctx, log)

	log.Info("executing beautification task")

	result, err := w.run(ctx, task)
	if err != nil {
		log.Error("task execution failed", "error", err)
		if failErr := w.writer.Fail(ctx, task.ID, err.Error()); failErr != nil {
			log.Error("failed to record task failure", "error", failErr)
		}
		return err
	}

	if err := w.writer.Complete(ctx, task.ID, result); err != nil {
		log.Error("failed to record task completion", "error", err)
		return err
	}

	log.Info("task completed", "output_key", result.OutputKey)
	return nil
}

// run executes the pipeline and returns the result to persist.
func (w *Worker) run(ctx context.Context, task *domain.Task) (*domain.TaskResult, error) {
	log := logger.FromContext(ctx)
	payload := task.Payload

	// 1. Resolve the document's HTML body.
	doc, err := w.resolveDocument(ctx, payload)
	if err != nil {
		return nil, err
	}

	// 2. Swap images for placeholders before the lossy rewrite.
	placeholderDoc, refs, err := w.codec.Extract(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode placeholders: %w", err)
	}
	codec.MarkColorized(refs, payload.ColorizedImages)
	log.Debug("encoded placeholders",
		"image_count", len(refs),
		"document_size", len(placeholderDoc))

	// 3. Rewrite.
	rewritten, err := w.rewriter.Rewrite(ctx, placeholderDoc, buildInstruction(payload))
	if err != nil {
		return nil, fmt.Errorf("rewrite failed: %w", err)
	}

	// 4. Restore images; colorized variants take precedence over anything
	// the rewrite left behind.
	final := w.codec.Restore(rewritten, refs)
	final = codec.ApplyColorized(final, payload.ColorizedImages)

	// 5. Persist the rewritten document.
	outputKey, filename, err := w.persist(ctx, task, final)
	if err != nil {
		return nil, err
	}

	return &domain.TaskResult{
		OutputKey:      outputKey,
		OutputFilename: filename,
		DocumentID:     payload.DocumentID,
		OutputFormat:   payload.OutputFormat,
		Content:        final,
		CompletedAt:    time.Now().UTC(),
	}, nil
}

// resolveDocument returns the document body as HTML: inline payload content
// first, then the candidate storage locations, falling back through
// document-format conversion when the resolved artifact is binary.
func (w *Worker) resolveDocument(ctx context.Context, payload domain.TaskPayload) (string, error) {
	if payload.InlineHTML != "" {
		return payload.InlineHTML, nil
	}

	data, key, err := w.documents.FetchDocument(ctx, payload.DocumentID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve source document: %w", err)
	}

	if looksLikeHTML(data) {
		return string(data), nil
	}

	if w.converter == nil {
		return "", fmt.Errorf("unsupported input type for %q: not HTML and no converter available", key)
	}

	doc, err := w.converter.ToHTML(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to convert %q to HTML: %w", key, err)
	}
	return doc, nil
}

// persist writes the document to a private scratch directory, mirrors it to
// object storage, and cleans the scratch up best-effort.
func (w *Worker) persist(ctx context.Context, task *domain.Task, doc string) (string, string, error) {
	log := logger.FromContext(ctx)

	base := task.Payload.DocumentID
	if base == "" {
		base = task.ID.String()
	}
	filename := sanitizeFilename(base) + "-beautified.html"
	outputKey := "results/" + task.ID.String() + ".html"

	scratchDir, err := os.MkdirTemp("", "docpolish-")
	if err != nil {
		return "", "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			log.Warn("failed to clean scratch directory",
				"dir", scratchDir,
				"error", err)
		}
	}()

	scratchPath := filepath.Join(scratchDir, filename)
	if err := os.WriteFile(scratchPath, []byte(doc), 0o600); err != nil {
		return "", "", fmt.Errorf("failed to write scratch file: %w", err)
	}

	if err := w.documents.PutResult(ctx, outputKey, []byte(doc)); err != nil {
		return "", "", fmt.Errorf("failed to persist result: %w", err)
	}

	return outputKey, filename, nil
}

// buildInstruction assembles the rewrite instruction from the task's target
// format and free-text styling requirements.
func buildInstruction(payload domain.TaskPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Restyle the following HTML document for %s output.\n", payload.OutputFormat)

	if payload.Requirements != "" {
		fmt.Fprintf(&b, "Styling requirements: %s\n", payload.Requirements)
	} else {
		b.WriteString("Styling requirements: clean, modern, readable.\n")
	}

	b.WriteString("Preserve the document's text content. " +
		"Keep every element that carries an id attribute, with its id and data- attributes unchanged.")
	return b.String()
}

// looksLikeHTML reports whether an artifact is markup rather than a binary
// document.
func looksLikeHTML(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// sanitizeFilename strips path separators from a user-influenced name.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
