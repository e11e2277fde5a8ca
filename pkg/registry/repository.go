package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrUnknownModel is returned by Lookup for names no manifest declares.
var ErrUnknownModel = errors.New("registry: unknown model")

// Repository knows how to look up a radio model by name.
type Repository interface {
	Lookup(name string) (*Model, error)
}

// MemoryRepository is an in-memory set of models, filled from manifests or
// registered directly.
type MemoryRepository struct {
	mu     sync.RWMutex
	models map[string]*Model
	logger *zap.Logger
}

// Option configures a MemoryRepository.
type Option func(*MemoryRepository)

// WithLogger sets the logger used while loading manifests.
func WithLogger(logger *zap.Logger) Option {
	return func(r *MemoryRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(opts ...Option) *MemoryRepository {
	r := &MemoryRepository{
		models: make(map[string]*Model),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add registers a model under its ID.
func (r *MemoryRepository) Add(m *Model) error {
	if m == nil || m.Model == "" {
		return fmt.Errorf("registry: model name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(m.ID())
	if _, dup := r.models[k]; dup {
		return fmt.Errorf("registry: duplicate model %s", m.ID())
	}
	r.models[k] = m
	return nil
}

// Lookup implements the Repository interface. name is matched against the
// model ID and, when unambiguous, the bare model name.
func (r *MemoryRepository) Lookup(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k := key(name)
	if m, ok := r.models[k]; ok {
		return m, nil
	}
	var found *Model
	for _, m := range r.models {
		if key(m.Model) == k {
			if found != nil {
				return nil, fmt.Errorf("registry: model name %q is ambiguous", name)
			}
			found = m
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return found, nil
}

// Models returns all models sorted by ID.
func (r *MemoryRepository) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Detect returns the models whose clone image is exactly size bytes.
func (r *MemoryRepository) Detect(size int) []*Model {
	var out []*Model
	for _, m := range r.Models() {
		if m.MemSize == size {
			out = append(out, m)
		}
	}
	return out
}

// LoadFile reads one manifest and registers its model.
func (r *MemoryRepository) LoadFile(file string) (*Model, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", file, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", file, err)
	}
	m.dir = filepath.Dir(file)
	if err := r.Add(m); err != nil {
		return nil, err
	}
	r.logger.Debug("model registered", zap.String("model", m.ID()), zap.String("manifest", file))
	return m, nil
}

// LoadDir recursively loads all .yaml/.yml manifests under root. YAML files
// without a model key, such as YAML schemas, are skipped.
func (r *MemoryRepository) LoadDir(root string) error {
	if err := r.LoadFS(os.DirFS(root)); err != nil {
		return fmt.Errorf("registry: load %s: %w", root, err)
	}
	return nil
}

// LoadFS loads every manifest in fsys. Schema files are resolved inside
// fsys relative to their manifest.
func (r *MemoryRepository) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isYAML(name) {
			return nil
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("registry: read %s: %w", name, err)
		}
		if !looksLikeManifest(data) {
			r.logger.Debug("skipping non-manifest yaml", zap.String("path", name))
			return nil
		}
		m, err := ParseManifest(data)
		if err != nil {
			return fmt.Errorf("registry: %s: %w", name, err)
		}
		m.fsys = fsys
		m.dir = path.Dir(name)
		if err := r.Add(m); err != nil {
			return err
		}
		r.logger.Debug("model registered", zap.String("model", m.ID()), zap.String("manifest", name))
		return nil
	})
}

func isYAML(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func looksLikeManifest(data []byte) bool {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}
	_, ok := doc["model"]
	return ok
}

// ParseManifest decodes a model manifest. Integer keys accept decimal or
// 0x-prefixed strings.
func ParseManifest(data []byte) (*Model, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m := &Model{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           m,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       hexStringHook,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Model == "" {
		return nil, fmt.Errorf("manifest has no model")
	}
	if m.Schema == "" && m.SchemaFile == "" {
		return nil, fmt.Errorf("%s: manifest needs schema or schema_file", m.ID())
	}
	return m, nil
}

func hexStringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return int(n), nil
}
