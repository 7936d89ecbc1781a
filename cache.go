package xsdfix

import (
	"path/filepath"
	"sync"
)

// SchemaCache loads each schema location at most once and hands out the
// shared, read-only result. A cache is owned by one run; there is no
// process-wide instance.
type SchemaCache struct {
	mu          sync.RWMutex
	schemas     map[string]*schemaEntry
	BasePath    string // Base path for resolving relative schema locations
	AllowRemote bool
}

type schemaEntry struct {
	once   sync.Once
	schema *Schema
	index  *Index
	err    error
}

// NewSchemaCache creates a new schema cache
func NewSchemaCache(basePath string) *SchemaCache {
	return &SchemaCache{
		schemas:  make(map[string]*schemaEntry),
		BasePath: basePath,
	}
}

// Get retrieves a schema from cache or loads it (with imports and includes)
// if not present.
func (sc *SchemaCache) Get(location string) (*Schema, error) {
	entry := sc.entry(location)
	return entry.schema, entry.err
}

// Index returns the shared Index for the schema at location.
func (sc *SchemaCache) Index(location string) (*Index, error) {
	entry := sc.entry(location)
	return entry.index, entry.err
}

func (sc *SchemaCache) entry(location string) *schemaEntry {
	resolved := sc.resolvePath(location)

	sc.mu.RLock()
	entry, exists := sc.schemas[resolved]
	sc.mu.RUnlock()

	if !exists {
		sc.mu.Lock()
		if entry, exists = sc.schemas[resolved]; !exists {
			entry = &schemaEntry{}
			sc.schemas[resolved] = entry
		}
		sc.mu.Unlock()
	}

	entry.once.Do(func() {
		loader := NewSchemaLoader(filepath.Dir(resolved))
		loader.AllowRemote = sc.AllowRemote
		entry.schema, entry.err = loader.LoadSchemaWithImports(resolved)
		if entry.err == nil {
			entry.index = NewIndex(entry.schema)
		}
	})
	return entry
}

// Remove removes a specific schema from cache
func (sc *SchemaCache) Remove(location string) {
	resolved := sc.resolvePath(location)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.schemas, resolved)
}

// resolvePath resolves a schema location to an absolute path
func (sc *SchemaCache) resolvePath(location string) string {
	if filepath.IsAbs(location) || isRemote(location) {
		return location
	}
	if sc.BasePath != "" {
		location = filepath.Join(sc.BasePath, location)
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return location
	}
	return abs
}
