package outbox

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SchemaVersion is the current persistence schema version.
const SchemaVersion = 1

// Persistence defines the interface for outbox storage.
type Persistence interface {
	// Load reads all entries from storage.
	Load() ([]Entry, error)

	// Append adds an entry to storage.
	Append(e Entry) error

	// Rewrite replaces the entire storage file (used after prune).
	Rewrite(es []Entry) error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	FolioSchemaVersion int   `json:"folio_schema_version"`
	CreatedAt          int64 `json:"created_at"`
}

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// JSONLPersistence implements Persistence using JSONL files.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence creates a new JSONLPersistence.
// Creates the file if it doesn't exist.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return p, nil
}

// writeHeader writes the schema version header to the file.
func (p *JSONLPersistence) writeHeader() error {
	data, err := json.Marshal(schemaHeader{
		FolioSchemaVersion: SchemaVersion,
		CreatedAt:          time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	_, err = p.file.Write(append(data, '\n'))
	return err
}

// Load reads all entries from storage. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if err := p.reopenIfReplacedLocked(); err != nil {
		return nil, err
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	var entries []Entry
	scanner := bufio.NewScanner(p.file)
	const maxLineSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.FolioSchemaVersion > 0 {
				if header.FolioSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.FolioSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.ID != "" {
			entries = append(entries, e)
		}
	}

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading file: %w", err)
	}

	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return entries, err
	}

	return entries, nil
}

// Append adds an entry to storage.
func (p *JSONLPersistence) Append(e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}

	if err := p.reopenIfReplacedLocked(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if _, err := p.file.Write(append(data, '\n')); err != nil {
		return err
	}

	return p.file.Sync()
}

// reopenIfReplacedLocked reopens the file when another process (folio prune)
// has rewritten it since it was opened. Caller holds mu.
func (p *JSONLPersistence) reopenIfReplacedLocked() error {
	current, err := p.file.Stat()
	if err != nil {
		return err
	}
	onDisk, err := os.Stat(p.path)
	if err == nil && os.SameFile(current, onDisk) {
		return nil
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen file %s: %w", p.path, err)
	}
	_ = p.file.Close()
	p.file = file

	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		return p.writeHeader()
	}
	return nil
}

// Rewrite replaces the entire storage file.
func (p *JSONLPersistence) Rewrite(es []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backupPath := p.path + ".bak"
	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		_ = os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	if err := p.writeHeader(); err != nil {
		return err
	}

	for _, e := range es {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := p.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}

	if err := p.file.Sync(); err != nil {
		return err
	}

	_ = os.Remove(backupPath)
	return nil
}

// Close releases file handles and resources.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}
