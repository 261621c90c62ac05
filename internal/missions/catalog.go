// Package missions serves the mission menu. Each mission brief is the whole
// text of a file; an optional YAML manifest names the files, their labels
// and openers.
package missions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"callcopilot/internal/domain"
)

// DefaultManifestName is looked up in the missions directory when no
// manifest path is configured.
const DefaultManifestName = "missions.yaml"

var ErrUnknownMission = errors.New("unknown mission")

// Entry is one manifest item.
type Entry struct {
	File   string `yaml:"file"`
	Label  string `yaml:"label,omitempty"`
	Opener string `yaml:"opener,omitempty"`
}

type manifest struct {
	Missions []Entry `yaml:"missions"`
}

// DefaultEntries is the menu used when no manifest exists.
func DefaultEntries() []Entry {
	return []Entry{
		{File: "mission_sell_drones.txt", Label: "SELL DRONES", Opener: "Hi, this is Josh from Kolasa Ag Systems..."},
		{File: "mission_pitch_leads.txt", Label: "PITCH LEADS"},
	}
}

// DisplayName is the mission name recorded with saved calls:
// mission_sell_drones.txt becomes SELL_DRONES.
func DisplayName(file string) string {
	name := filepath.Base(file)
	name = strings.TrimPrefix(name, "mission_")
	name = strings.TrimSuffix(name, ".txt")
	return strings.ToUpper(strings.TrimSpace(name))
}

// Catalog implements ports.MissionCatalog over a directory of mission files.
type Catalog struct {
	dir          string
	manifestPath string
	log          *zap.Logger

	mu      sync.RWMutex
	entries []Entry
}

// NewCatalog reads the manifest at manifestPath (or DefaultManifestName in
// dir when empty). A missing manifest selects DefaultEntries.
func NewCatalog(dir, manifestPath string, log *zap.Logger) (*Catalog, error) {
	if dir == "" {
		dir = "."
	}
	if manifestPath == "" {
		manifestPath = filepath.Join(dir, DefaultManifestName)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{dir: dir, manifestPath: manifestPath, log: log.Named("missions")}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the manifest. On error the previous menu is kept.
func (c *Catalog) Reload() error {
	entries, err := readManifest(c.manifestPath)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.log.Info("mission menu loaded", zap.String("manifest", c.manifestPath), zap.Int("missions", len(entries)))
	return nil
}

func readManifest(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultEntries(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mission manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mission manifest %s: %w", path, err)
	}

	if len(m.Missions) == 0 {
		return nil, fmt.Errorf("parse mission manifest %s: no missions listed", path)
	}

	entries := make([]Entry, 0, len(m.Missions))
	seen := make(map[string]struct{}, len(m.Missions))
	for i, entry := range m.Missions {
		entry.File = strings.TrimSpace(entry.File)
		if entry.File == "" {
			return nil, fmt.Errorf("parse mission manifest %s: mission %d has no file", path, i+1)
		}
		if _, dup := seen[entry.File]; dup {
			return nil, fmt.Errorf("parse mission manifest %s: duplicate mission %q", path, entry.File)
		}
		seen[entry.File] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *Catalog) List() []domain.MissionEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.MissionEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		label := entry.Label
		if label == "" {
			label = DisplayName(entry.File)
		}
		out = append(out, domain.MissionEntry{Key: entry.File, Label: label})
	}
	return out
}

// Load reads the mission file fresh, so edits to a brief apply on the next
// load without a restart.
func (c *Catalog) Load(key string) (domain.Mission, error) {
	entry, ok := c.lookup(key)
	if !ok {
		return domain.Mission{}, fmt.Errorf("%w: %s", ErrUnknownMission, key)
	}

	path := entry.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("read mission %s: %w", entry.File, err)
	}

	return domain.Mission{
		Key:    entry.File,
		Name:   DisplayName(entry.File),
		Brief:  string(data),
		Opener: strings.TrimSpace(entry.Opener),
	}, nil
}

func (c *Catalog) lookup(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.entries {
		if entry.File == key {
			return entry, true
		}
	}
	return Entry{}, false
}
