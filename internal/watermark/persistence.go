package watermark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/studiokicks/leaderboard/internal/db"
	"github.com/studiokicks/leaderboard/internal/model"
)

const (
	BackendFile     = "file"
	BackendDatabase = "database"
	BackendMemory   = "memory"
)

// Config selects where watermarks are kept
type Config struct {
	Backend string `toml:"backend"`
	// Path is the TOML file used by the file backend
	Path string `toml:"path"`
}

// DefaultConfig returns the default watermark configuration
func DefaultConfig() Config {
	return Config{
		Backend: BackendDatabase,
		Path:    "watermarks.toml",
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.Path == "" {
			return errors.New("watermarks.path is required for the file backend")
		}
	case BackendDatabase, BackendMemory:
	default:
		return fmt.Errorf("unknown watermarks.backend %q", c.Backend)
	}
	return nil
}

// NewPersistence builds the backend named in cfg. database may be nil unless
// the database backend is selected.
func NewPersistence(cfg Config, database *db.DB) (Persistence, error) {
	switch cfg.Backend {
	case BackendFile:
		return NewFilePersistence(cfg.Path), nil
	case BackendDatabase:
		if database == nil {
			return nil, errors.New("database backend selected without a database")
		}
		return NewDatabasePersistence(database), nil
	case BackendMemory:
		return NewMemoryPersistence(), nil
	default:
		return nil, fmt.Errorf("unknown watermarks.backend %q", cfg.Backend)
	}
}

// =============================================================================
// File backend
// =============================================================================

type fileDocument struct {
	Watermarks map[string]int64 `toml:"watermarks"`
}

// FilePersistence stores watermarks in a TOML document
type FilePersistence struct {
	path string
}

func NewFilePersistence(path string) *FilePersistence {
	return &FilePersistence{path: path}
}

// LoadAll reads the document. A missing file means no watermarks.
func (p *FilePersistence) LoadAll(ctx context.Context) (map[model.EntityType]int64, error) {
	var doc fileDocument
	if _, err := toml.DecodeFile(p.path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[model.EntityType]int64{}, nil
		}
		return nil, err
	}

	marks := make(map[model.EntityType]int64, len(doc.Watermarks))
	for name, ts := range doc.Watermarks {
		entity, err := model.ParseEntityType(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.path, err)
		}
		marks[entity] = ts
	}
	return marks, nil
}

// SaveAll writes to a temporary file in the same directory and renames it
// over the document, so readers never observe a partial write.
func (p *FilePersistence) SaveAll(ctx context.Context, marks map[model.EntityType]int64) error {
	doc := fileDocument{Watermarks: make(map[string]int64, len(marks))}
	for entity, ts := range marks {
		doc.Watermarks[entity.String()] = ts
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

// =============================================================================
// Database backend
// =============================================================================

const settingsPrefix = "watermark."

// DatabasePersistence stores watermarks in the settings table
type DatabasePersistence struct {
	db *db.DB
}

func NewDatabasePersistence(database *db.DB) *DatabasePersistence {
	return &DatabasePersistence{db: database}
}

func (p *DatabasePersistence) LoadAll(ctx context.Context) (map[model.EntityType]int64, error) {
	settings, err := p.db.SettingsWithPrefix(ctx, settingsPrefix)
	if err != nil {
		return nil, err
	}

	marks := make(map[model.EntityType]int64, len(settings))
	for name, value := range settings {
		entity, err := model.ParseEntityType(name)
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("watermark %s: %w", name, err)
		}
		marks[entity] = ts
	}
	return marks, nil
}

func (p *DatabasePersistence) SaveAll(ctx context.Context, marks map[model.EntityType]int64) error {
	return p.db.WithTransaction(ctx, func(tx *db.Tx) error {
		for _, entity := range model.EntityTypes {
			key := settingsPrefix + entity.String()

			ts, ok := marks[entity]
			if !ok {
				if err := tx.DeleteSetting(ctx, key); err != nil {
					return err
				}
				continue
			}
			if err := tx.SetSetting(ctx, key, strconv.FormatInt(ts, 10)); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Memory backend
// =============================================================================

// MemoryPersistence keeps watermarks in process memory
type MemoryPersistence struct {
	mu      sync.Mutex
	marks   map[model.EntityType]int64
	saves   int
	loadErr error
	saveErr error
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{marks: make(map[model.EntityType]int64)}
}

func (p *MemoryPersistence) LoadAll(ctx context.Context) (map[model.EntityType]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return maps.Clone(p.marks), nil
}

func (p *MemoryPersistence) SaveAll(ctx context.Context, marks map[model.EntityType]int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.saveErr != nil {
		return p.saveErr
	}
	p.marks = maps.Clone(marks)
	p.saves++
	return nil
}

// Saved returns a copy of the last saved state
func (p *MemoryPersistence) Saved() map[model.EntityType]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.marks)
}

// Saves returns the number of successful SaveAll calls
func (p *MemoryPersistence) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func (p *MemoryPersistence) SetLoadError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadErr = err
}

func (p *MemoryPersistence) SetSaveError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveErr = err
}
