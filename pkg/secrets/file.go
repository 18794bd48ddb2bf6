package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider reads the credential from a single secret file.
//
// This supports Kubernetes-style secret mounts and plain files managed by
// a secrets agent. File permissions are validated so the secret is not
// readable by other users (0600 or 0400 only). The content is trimmed and
// memoized; when watching is enabled, any change in the file's directory
// drops the memoized value so the next call re-reads the file.
type FileProvider struct {
	Path  string // Secret file
	Watch bool   // Invalidate the memoized value on change

	logger *slog.Logger

	mu      sync.RWMutex
	cached  string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
}

// NewFileProvider creates a file credential source.
//
// The file does not have to exist yet; a missing file is reported by
// Credential. The parent directory is watched rather than the file itself
// so that atomic replacement (write to temp, rename over) is noticed.
func NewFileProvider(path string, watch bool, logger *slog.Logger) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("secret file path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &FileProvider{
		Path:   path,
		Watch:  watch,
		logger: logger,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if !watch {
		close(p.done)
		logger.Info("file credential source started without watching", "path", path)
		return p, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	p.watcher = watcher
	go p.watchLoop()

	logger.Info("file credential source started with watching", "path", path)
	return p, nil
}

// Credential returns the secret file's trimmed content.
func (p *FileProvider) Credential(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.cached != "" {
		value := p.cached
		p.mu.RUnlock()
		return value, nil
	}
	p.mu.RUnlock()

	value, err := p.read()
	if err != nil {
		return "", err
	}

	// Without a watcher nothing would ever invalidate the value.
	if p.Watch {
		p.mu.Lock()
		p.cached = value
		p.mu.Unlock()
	}
	return value, nil
}

func (p *FileProvider) read() (string, error) {
	info, err := os.Stat(p.Path)
	if err != nil {
		return "", &NotFoundError{Source: "file", Location: p.Path, Cause: err}
	}

	if !info.Mode().IsRegular() {
		return "", &NotFoundError{Source: "file", Location: p.Path, Cause: fmt.Errorf("not a regular file")}
	}

	mode := info.Mode().Perm()
	if mode != 0600 && mode != 0400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", p.Path, mode)
	}

	// #nosec G304 - the path comes from operator configuration
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", &NotFoundError{Source: "file", Location: p.Path, Cause: err}
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", &NotFoundError{Source: "file", Location: p.Path, Cause: fmt.Errorf("file is empty")}
	}
	return value, nil
}

// Invalidate drops the memoized value.
func (p *FileProvider) Invalidate() {
	p.mu.Lock()
	p.cached = ""
	p.mu.Unlock()
}

// Close stops the file watcher.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	select {
	case <-p.stopCh:
		return nil
	default:
	}
	close(p.stopCh)
	err := p.watcher.Close()
	<-p.done
	return err
}

func (p *FileProvider) watchLoop() {
	defer close(p.done)
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.logger.Debug("secret directory changed, dropping cached credential",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)
			p.Invalidate()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("file watcher error", "error", err)

		case <-p.stopCh:
			return
		}
	}
}
