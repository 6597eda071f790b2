package sietch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/seb7887/gofw/predicate"
)

// DefaultResourcesPath is the directory JSON stores live in by default.
const DefaultResourcesPath = "Resources"

// JSONFileOptions configures a JSONFileConnector.
type JSONFileOptions struct {
	// Fs is the filesystem to use. Default: the OS filesystem
	Fs afero.Fs

	// ResourcesPath is the directory holding the file. Default: "Resources"
	ResourcesPath string

	// FileName overrides the file name. Default: "<TypeName>.json"
	FileName string

	Logger QueryLogger
}

// JSONFileConnector keeps all records of T in one JSON array file. The file
// is read on first access; every mutation rewrites it. Its natural order is
// the order of the file, new records appended at the end.
type JSONFileConnector[T any, ID comparable] struct {
	mem    *InMemoryConnector[T, ID]
	fs     afero.Fs
	path   string
	logger QueryLogger

	loadOnce sync.Once
	loadErr  error
	writeMu  sync.Mutex
}

// NewJSONFileConnector creates a store backed by <ResourcesPath>/<TypeName>.json.
func NewJSONFileConnector[T any, ID comparable](opts JSONFileOptions) (*JSONFileConnector[T, ID], error) {
	mem, err := NewInMemoryConnector[T, ID]()
	if err != nil {
		return nil, err
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ResourcesPath == "" {
		opts.ResourcesPath = DefaultResourcesPath
	}
	if opts.FileName == "" {
		s, err := predicate.SchemaOf[T]()
		if err != nil {
			return nil, err
		}
		opts.FileName = s.Name + ".json"
	}
	if opts.Logger == nil {
		opts.Logger = NewNoOpLogger()
	}
	return &JSONFileConnector[T, ID]{
		mem:    mem,
		fs:     opts.Fs,
		path:   filepath.Join(opts.ResourcesPath, opts.FileName),
		logger: opts.Logger,
	}, nil
}

// Path returns the file the store reads and writes.
func (r *JSONFileConnector[T, ID]) Path() string {
	return r.path
}

// Capabilities implements CapabilityReporter.
func (r *JSONFileConnector[T, ID]) Capabilities() Capabilities {
	return FullOrdering
}

func (r *JSONFileConnector[T, ID]) Query(ctx context.Context, q Query[T]) ([]T, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r.mem.Query(ctx, q)
}

func (r *JSONFileConnector[T, ID]) FindByKey(ctx context.Context, id ID) (*T, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r.mem.FindByKey(ctx, id)
}

func (r *JSONFileConnector[T, ID]) Count(ctx context.Context, q Query[T]) (int64, error) {
	if err := r.load(ctx); err != nil {
		return 0, err
	}
	return r.mem.Count(ctx, q)
}

func (r *JSONFileConnector[T, ID]) Insert(ctx context.Context, item *T) error {
	return r.mutate(ctx, "Insert", func() error { return r.mem.Insert(ctx, item) })
}

func (r *JSONFileConnector[T, ID]) Update(ctx context.Context, item *T) error {
	return r.mutate(ctx, "Update", func() error { return r.mem.Update(ctx, item) })
}

func (r *JSONFileConnector[T, ID]) Delete(ctx context.Context, item *T) error {
	return r.mutate(ctx, "Delete", func() error { return r.mem.Delete(ctx, item) })
}

// mutate applies op to the in-memory copy and writes the file. Mutations are
// serialized so the file always reflects a whole number of them.
func (r *JSONFileConnector[T, ID]) mutate(ctx context.Context, operation string, op func() error) error {
	if err := r.load(ctx); err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := op(); err != nil {
		return err
	}
	return r.save(ctx, operation)
}

func (r *JSONFileConnector[T, ID]) load(ctx context.Context) error {
	r.loadOnce.Do(func() {
		var err error
		defer func(start time.Time) { logQuery(r.logger, ctx, "Load", r.path, nil, start, err) }(time.Now())

		data, err := afero.ReadFile(r.fs, r.path)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			err = nil
			return
		}
		if err != nil {
			r.loadErr = fmt.Errorf("reading %s: %w", r.path, err)
			return
		}
		if len(data) == 0 {
			return
		}
		var items []T
		if err = json.Unmarshal(data, &items); err != nil {
			r.loadErr = fmt.Errorf("decoding %s: %w", r.path, err)
			return
		}
		r.mem.Load(items)
	})
	return r.loadErr
}

func (r *JSONFileConnector[T, ID]) save(ctx context.Context, operation string) (err error) {
	defer func(start time.Time) { logQuery(r.logger, ctx, operation, r.path, nil, start, err) }(time.Now())

	data, err := json.MarshalIndent(r.mem.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	if err = r.fs.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err = afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return err
	}
	err = r.fs.Rename(tmp, r.path)
	return err
}
