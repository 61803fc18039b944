// Package cache stores extracted imports on disk between builds. One
// YAML file per build configuration, named by a fingerprint of the
// configuration, maps each scanned file path to its mtime and
// imports. A file whose mtime matches its entry is served from cache;
// anything unreadable is treated as a cold build.
package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultDir is used when the caller does not configure a cache
// directory.
const DefaultDir = ".taproot_cache"

// Config identifies one build configuration. Cached imports are only
// reused by builds with an identical configuration.
type Config struct {
	RootNames                  []string
	IncludeExternalPackages    bool
	ExcludeTypeCheckingImports bool
}

// Fingerprint returns the hash that names this configuration's cache
// file.
func (c Config) Fingerprint() string {
	names := make([]string, len(c.RootNames))
	copy(names, c.RootNames)
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strings.Join(names, ","))
	if c.IncludeExternalPackages {
		b.WriteString(":external")
	}
	if c.ExcludeTypeCheckingImports {
		b.WriteString(":no_type_checking")
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

// ImportRecord is the serialised form of one extracted import.
type ImportRecord struct {
	Imported     string `yaml:"imported"`
	LineNumber   int    `yaml:"line_number"`
	LineContents string `yaml:"line_contents"`
	TypeChecking bool   `yaml:"is_type_checking,omitempty"`
}

// FileEntry is the cached state of one source file.
type FileEntry struct {
	Module     string         `yaml:"module"`
	MTimeNanos int64          `yaml:"mtime_ns"`
	Imports    []ImportRecord `yaml:"imports"`
}

// Cache is the per-configuration store. A nil *Cache disables both
// the read and the write path.
type Cache struct {
	dir     string
	cfg     Config
	log     *slog.Logger
	entries map[string]FileEntry
	fresh   map[string]FileEntry
}

// Open loads the cache file for the configuration. Missing or corrupt
// files are logged and treated as empty; Open never fails the build.
func Open(dir string, cfg Config, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	c := &Cache{
		dir:     dir,
		cfg:     cfg,
		log:     log,
		entries: make(map[string]FileEntry),
		fresh:   make(map[string]FileEntry),
	}

	path := c.filename()
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("could not read cache file", "path", path, "error", err)
		} else {
			log.Debug("no cache file", "path", path)
		}
		return c
	}
	if err := yaml.Unmarshal(raw, &c.entries); err != nil {
		log.Warn("could not use corrupt cache file", "path", path, "error", err)
		c.entries = make(map[string]FileEntry)
		return c
	}
	log.Debug("loaded cache file", "path", path, "entries", len(c.entries))
	return c
}

func (c *Cache) filename() string {
	return filepath.Join(c.dir, c.cfg.Fingerprint()+".data.yaml")
}

// Lookup returns the cached imports for a file if its mtime still
// matches.
func (c *Cache) Lookup(path string, mtimeNanos int64) ([]ImportRecord, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.entries[path]
	if !ok || entry.MTimeNanos != mtimeNanos {
		return nil, false
	}
	return entry.Imports, true
}

// Record stores freshly extracted imports for inclusion in the next
// Write.
func (c *Cache) Record(path, module string, mtimeNanos int64, imports []ImportRecord) {
	if c == nil {
		return
	}
	c.fresh[path] = FileEntry{Module: module, MTimeNanos: mtimeNanos, Imports: imports}
}

// Write persists the union of retained and fresh entries. Entries for
// files that were not part of this build's scan are discarded. Not
// safe for concurrent writers; the last write wins.
func (c *Cache) Write(scanned map[string]struct{}) error {
	if c == nil {
		return nil
	}

	merged := make(map[string]FileEntry, len(scanned))
	for path, entry := range c.entries {
		if _, ok := scanned[path]; ok {
			merged[path] = entry
		}
	}
	for path, entry := range c.fresh {
		merged[path] = entry
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create cache directory")
	}
	c.writeMarkerFiles()

	raw, err := yaml.Marshal(merged)
	if err != nil {
		return zerr.Wrap(err, "failed to serialise cache")
	}
	path := c.filename()
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return zerr.Wrap(err, "failed to write cache file")
	}
	c.log.Debug("wrote cache file", "path", path, "entries", len(merged))
	return nil
}

// writeMarkerFiles drops a .gitignore and a CACHEDIR.TAG into the
// cache directory so version control and backup tools leave it alone.
func (c *Cache) writeMarkerFiles() {
	markers := []struct {
		name     string
		contents string
	}{
		{".gitignore", "# Automatically created by taproot.\n*\n"},
		{"CACHEDIR.TAG", "Signature: 8a477f597d28d172789f06886806bc55\n" +
			"# This file is a cache directory tag automatically created by taproot.\n" +
			"# For information about cache directory tags see https://bford.info/cachedir/\n"},
	}
	for _, marker := range markers {
		path := filepath.Join(c.dir, marker.name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(marker.contents), 0o644); err != nil {
				c.log.Warn("could not write cache marker file", "path", path, "error", err)
			}
		}
	}
}
