// Package config locates and persists project files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/dbmlgen/internal/schema"
)

const (
	// HomeEnv overrides the directory holding project files
	HomeEnv     = "DBML_HOME"
	DefaultHome = "~/.dbml"

	projectExt = ".yaml"
	outputExt  = ".dbml"
)

var (
	ErrConfigNotFound = errors.New("config not found")
	ErrConfigParse    = errors.New("config parse error")
	ErrConfigWrite    = errors.New("config write error")
)

// Store reads and writes project files under Root
type Store struct {
	Root string
}

// NewStore creates a store rooted at root
func NewStore(root string) *Store {
	return &Store{Root: ExpandHome(root)}
}

// DefaultRoot resolves the project directory from the environment, reading a
// .env file in the working directory if one exists
func DefaultRoot() string {
	_ = godotenv.Load()

	if home := os.Getenv(HomeEnv); home != "" {
		return ExpandHome(home)
	}
	return ExpandHome(DefaultHome)
}

// ProjectPath returns the path of a project's IR file
func (s *Store) ProjectPath(project string) string {
	return filepath.Join(s.Root, project+projectExt)
}

// OutputPath returns the path of a project's rendered DBML file
func (s *Store) OutputPath(project string) string {
	return filepath.Join(s.Root, project+outputExt)
}

// Load reads and parses a project file
func (s *Store) Load(project string) (*schema.Project, error) {
	path := s.ProjectPath(project)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	p := &schema.Project{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	if p.Name == "" {
		p.Name = project
	}
	if p.Databases == nil {
		p.Databases = make(map[string]*schema.Database)
	}
	p.FoldLegacyReferences()

	return p, nil
}

// Save writes a project to the file it is stored under. The path comes from
// the project argument, never from the name inside the document.
func (s *Store) Save(project string, p *schema.Project) error {
	path := s.ProjectPath(project)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrConfigWrite, filepath.Dir(path), err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: marshaling %s: %v", ErrConfigWrite, project, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	return nil
}

var secretPattern = regexp.MustCompile(`^\$\{ENV:([^}]+)\}$`)

// ResolveValue expands a "${ENV:NAME}" reference. Other values are returned unchanged.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	v, ok := os.LookupEnv(matches[1])
	if !ok {
		return "", fmt.Errorf("environment variable %s not set", matches[1])
	}
	return v, nil
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
