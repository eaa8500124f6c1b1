// events_file.go
package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// tailCapacity bounds the in-memory ring served on /events.
const tailCapacity = 100

// FileLog is the append-only event ledger on local disk, one JSON
// object per line. It keeps a short tail in memory so the HTTP API can
// show recent activity without re-reading the file.
type FileLog struct {
	mu     sync.RWMutex
	path   string
	lg     *slog.Logger
	file   *os.File
	writer *bufio.Writer
	count  int64
	tail   []Event
}

func NewFileLog(path string, lg *slog.Logger) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	fl := &FileLog{path: path, lg: lg, file: f, writer: bufio.NewWriter(f)}
	if err := fl.load(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 2); err != nil {
		f.Close()
		return nil, err
	}
	lg.Info("event log opened", "path", path, "existing", fl.count)
	return fl, nil
}

func (fl *FileLog) load() error {
	if _, err := fl.file.Seek(0, 0); err != nil {
		return err
	}
	scanner := bufio.NewScanner(fl.file)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fl.count++
		fl.appendTail(ev)
	}
	return scanner.Err()
}

func (fl *FileLog) appendTail(ev Event) {
	fl.tail = append(fl.tail, ev)
	if len(fl.tail) > tailCapacity {
		fl.tail = fl.tail[len(fl.tail)-tailCapacity:]
	}
}

func (fl *FileLog) Publish(_ context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if _, err := fl.writer.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := fl.writer.Flush(); err != nil {
		return err
	}
	fl.count++
	fl.appendTail(ev)
	return nil
}

// Tail returns up to n most recent events, oldest first.
func (fl *FileLog) Tail(n int) []Event {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if n <= 0 || n > len(fl.tail) {
		n = len(fl.tail)
	}
	out := make([]Event, n)
	copy(out, fl.tail[len(fl.tail)-n:])
	return out
}

// Count reports how many events the ledger holds in total.
func (fl *FileLog) Count() int64 {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.count
}

func (fl *FileLog) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if err := fl.writer.Flush(); err != nil {
		fl.file.Close()
		return err
	}
	return fl.file.Close()
}
