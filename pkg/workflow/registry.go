package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Registry holds workflow documents loaded from a directory. Documents are
// keyed by their name (falling back to the file basename) and reloaded when
// the directory changes.
type Registry struct {
	dir    string
	logger zerolog.Logger

	mu   sync.RWMutex
	docs map[string]*Document

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry loads all workflow documents under dir. A missing directory is
// not an error; the registry just starts empty.
func NewRegistry(dir string, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		dir:    dir,
		logger: logger,
		docs:   make(map[string]*Document),
		done:   make(chan struct{}),
	}

	if err := r.reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Get returns the document registered under name, or nil if absent. A nil
// document resolves to the built-in defaults.
func (r *Registry) Get(name string) *Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.docs[name]
}

// Names returns the registered workflow names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.docs))
	for name := range r.docs {
		names = append(names, name)
	}
	return names
}

// Watch starts reloading the registry on directory changes
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch workflows dir: %w", err)
	}

	r.watcher = watcher
	go r.eventLoop()

	r.logger.Info().Str("dir", r.dir).Msg("Workflow registry watching for changes")
	return nil
}

// Close stops the watcher if running
func (r *Registry) Close() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Registry) eventLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				r.logger.Warn().Err(err).Msg("Workflow registry reload failed")
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn().Err(err).Msg("Workflow watcher error")
		case <-r.done:
			return
		}
	}
}

func (r *Registry) reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read workflows dir: %w", err)
	}

	docs := make(map[string]*Document)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		doc, err := loadDocument(path)
		if err != nil {
			r.logger.Warn().Str("path", path).Err(err).Msg("Skipping invalid workflow document")
			continue
		}

		name := doc.Name
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			doc.Name = name
		}
		docs[name] = doc
	}

	r.mu.Lock()
	r.docs = docs
	r.mu.Unlock()

	r.logger.Debug().Int("count", len(docs)).Msg("Workflow documents loaded")
	return nil
}

func loadDocument(path string) (*Document, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read workflow document: %w", err)
	}

	doc := &Document{}
	if err := v.Unmarshal(doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow document: %w", err)
	}

	return doc, nil
}
