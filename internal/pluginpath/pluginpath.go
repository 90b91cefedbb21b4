// Package pluginpath maps a controller's class name to the location of its
// configuration files.
//
// A Manager knows two sources, tried in order:
//
//   - registered descriptors: class name -> plugin root directory, usually
//     loaded from a yaml index with [Manager.LoadIndex];
//   - search paths: <root>/<class name>/<relative path> for each root.
//
// The first candidate that exists as a regular file wins.
package pluginpath

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfPathUnresolved = errors.New("pluginpath: no configuration file found")
	ErrInvalidRequest     = errors.New("pluginpath: class name and relative path are required")
	ErrBadIndex           = errors.New("pluginpath: malformed plugin index")
)

// Resolver produces the absolute path of a plugin's configuration file.
type Resolver interface {
	ConfPath(className, relativePath string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(className, relativePath string) (string, error)

func (f ResolverFunc) ConfPath(className, relativePath string) (string, error) {
	return f(className, relativePath)
}

// Descriptor locates one plugin on disk.
type Descriptor struct {
	ClassName string `yaml:"class_name"`
	Path      string `yaml:"path"`
	Version   string `yaml:"version,omitempty"`
	Source    string `yaml:"source,omitempty"`
}

type index struct {
	Plugins []Descriptor `yaml:"plugins"`
}

// UnresolvedError lists every candidate that was tried.
type UnresolvedError struct {
	ClassName  string
	Candidates []string
}

func (e *UnresolvedError) Error() string {
	return ErrConfPathUnresolved.Error() + " for " + e.ClassName + " (tried: " + strings.Join(e.Candidates, ", ") + ")"
}

func (e *UnresolvedError) Unwrap() error {
	return ErrConfPathUnresolved
}

type Manager struct {
	mu          sync.RWMutex
	logger      *zap.SugaredLogger
	plugins     map[string]Descriptor
	searchPaths []string
}

func NewManager(logger *zap.SugaredLogger, searchPaths ...string) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		logger:      logger,
		plugins:     make(map[string]Descriptor),
		searchPaths: append([]string(nil), searchPaths...),
	}
}

// Register adds or replaces the descriptor for d.ClassName.
func (m *Manager) Register(d Descriptor) error {
	if d.ClassName == "" || d.Path == "" {
		return errors.Wrapf(ErrBadIndex, "descriptor %+v needs class_name and path", d)
	}
	d.Path = filepath.Clean(d.Path)
	m.mu.Lock()
	m.plugins[d.ClassName] = d
	m.mu.Unlock()
	return nil
}

func (m *Manager) AddSearchPath(dirs ...string) {
	m.mu.Lock()
	m.searchPaths = append(m.searchPaths, dirs...)
	m.mu.Unlock()
}

// LoadIndex registers every plugin listed in a yaml index file. Environment
// references such as ${APOLLO_ROOT} are expanded before decoding, and
// relative plugin paths are taken relative to the index file.
func (m *Manager) LoadIndex(path string) error {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading plugin index %s", path)
	}

	var idx index
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&idx); err != nil {
		return errors.Wrapf(ErrBadIndex, "%s: %v", path, err)
	}

	base := filepath.Dir(path)
	for _, d := range idx.Plugins {
		if d.Path != "" && !filepath.IsAbs(d.Path) {
			d.Path = filepath.Join(base, d.Path)
		}
		if d.Source == "" {
			d.Source = path
		}
		if err := m.Register(d); err != nil {
			return err
		}
	}
	m.logger.Debugw("loaded plugin index", "path", path, "plugins", len(idx.Plugins))
	return nil
}

// Descriptors returns the registered plugins sorted by class name.
func (m *Manager) Descriptors() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Descriptor, 0, len(m.plugins))
	for _, d := range m.plugins {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out
}

func (m *Manager) candidates(className, relativePath string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	if d, ok := m.plugins[className]; ok {
		out = append(out, filepath.Join(d.Path, relativePath))
	}
	for _, root := range m.searchPaths {
		out = append(out, filepath.Join(root, className, relativePath))
	}
	return out
}

func (m *Manager) ConfPath(className, relativePath string) (string, error) {
	if className == "" || relativePath == "" {
		return "", ErrInvalidRequest
	}
	if filepath.IsAbs(relativePath) {
		return "", errors.Wrapf(ErrInvalidRequest, "relative path %q is absolute", relativePath)
	}

	candidates := m.candidates(className, relativePath)
	for _, p := range candidates {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", errors.Wrapf(err, "resolving %s", p)
		}
		return abs, nil
	}
	return "", &UnresolvedError{ClassName: className, Candidates: candidates}
}
