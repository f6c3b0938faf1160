package sonara

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// HistoryRepository persists the conversation history as a single
// document with whole-document replace semantics. Implementations must
// never expose a partially written document to readers.
type HistoryRepository interface {
	// Save atomically replaces the stored document with the given messages.
	Save(ctx context.Context, messages []Message) error

	// Load reads the stored document. It returns ErrHistoryNotFound when
	// no document exists; callers treat that as an empty history.
	Load(ctx context.Context) ([]Message, error)

	// Delete removes the stored document so that a subsequent Load
	// behaves like a first run. Deleting a missing document is not an
	// error.
	Delete(ctx context.Context) error
}

// FileHistoryRepository stores the history as a JSON array of messages in
// a single well-known file. Saves write to a temporary file in the same
// directory and rename it over the target, so concurrent readers only
// ever observe a complete document.
type FileHistoryRepository struct {
	path string
}

// NewFileHistoryRepository creates a repository backed by the file at path.
// Parent directories are created on first save.
func NewFileHistoryRepository(path string) *FileHistoryRepository {
	return &FileHistoryRepository{path: path}
}

// Save implements HistoryRepository.Save with write-to-temp-then-rename.
func (r *FileHistoryRepository) Save(_ context.Context, messages []Message) error {
	if messages == nil {
		messages = []Message{}
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close history file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	return nil
}

// Load implements HistoryRepository.Load.
func (r *FileHistoryRepository) Load(_ context.Context) ([]Message, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return messages, nil
}

// Delete implements HistoryRepository.Delete.
func (r *FileHistoryRepository) Delete(_ context.Context) error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history file: %w", err)
	}
	return nil
}
