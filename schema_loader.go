package xsdfix

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agentflare-ai/go-xmldom"
)

// SchemaLoader loads a schema together with everything it includes or
// imports and merges the result into one combined Schema.
type SchemaLoader struct {
	// Base directory for resolving relative paths
	BaseDir string

	// Whether remote (http/https) locations may be fetched
	AllowRemote bool

	loaded     map[string]*Schema
	loading    map[string]bool // cycle detection
	order      []string        // load order, main schema first
	httpClient *http.Client

	mu sync.Mutex
}

// NewSchemaLoader creates a new schema loader
func NewSchemaLoader(baseDir string) *SchemaLoader {
	return &SchemaLoader{
		BaseDir:    baseDir,
		loaded:     make(map[string]*Schema),
		loading:    make(map[string]bool),
		httpClient: &http.Client{},
	}
}

// LoadSchemaWithImports loads a schema and all its imports/includes
func (sl *SchemaLoader) LoadSchemaWithImports(location string) (*Schema, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	main, err := sl.loadSchemaRecursive(location)
	if err != nil {
		return nil, err
	}

	combined := newSchema()
	combined.TargetNamespace = main.TargetNamespace
	combined.doc = main.doc

	// merge in load order so the main schema wins on name clashes
	for _, loc := range sl.order {
		source := sl.loaded[loc]
		combined.ImportedSchemas[loc] = source
		mergeComponents(source, combined)
	}

	combined.resolveReferences()
	return combined, nil
}

func (sl *SchemaLoader) loadSchemaRecursive(location string) (*Schema, error) {
	absLocation, err := sl.resolveLocation(location)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve location %s: %w", location, err)
	}

	if schema, ok := sl.loaded[absLocation]; ok {
		return schema, nil
	}
	if sl.loading[absLocation] {
		return nil, fmt.Errorf("circular dependency detected: %s", absLocation)
	}
	sl.loading[absLocation] = true
	defer delete(sl.loading, absLocation)

	doc, err := sl.loadDocument(absLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema from %s: %w", absLocation, err)
	}
	schema, err := Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema from %s: %w", absLocation, err)
	}
	sl.loaded[absLocation] = schema
	sl.order = append(sl.order, absLocation)

	for _, imp := range schema.Imports {
		if imp.SchemaLocation == "" {
			continue
		}
		impLocation := sl.resolveRelative(imp.SchemaLocation, absLocation)
		if _, err := sl.loadSchemaRecursive(impLocation); err != nil {
			// Import failures are often non-fatal
			slog.Warn("failed to load imported schema", "location", imp.SchemaLocation, "error", err)
		}
	}

	for _, includeLocation := range findIncludes(doc) {
		incLocation := sl.resolveRelative(includeLocation, absLocation)
		if _, err := sl.loadSchemaRecursive(incLocation); err != nil {
			return nil, fmt.Errorf("failed to include %s: %w", includeLocation, err)
		}
	}

	return schema, nil
}

// findIncludes finds all xs:include elements in the document
func findIncludes(doc xmldom.Document) []string {
	var includes []string
	root := doc.DocumentElement()
	if root == nil {
		return includes
	}
	forEachXSDChild(root, func(child xmldom.Element) {
		if string(child.LocalName()) != "include" {
			return
		}
		if location := child.GetAttribute("schemaLocation"); location != "" {
			includes = append(includes, string(location))
		}
	})
	return includes
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// resolveLocation resolves a location to an absolute path or URL
func (sl *SchemaLoader) resolveLocation(location string) (string, error) {
	if filepath.IsAbs(location) {
		return location, nil
	}
	if isRemote(location) {
		if !sl.AllowRemote {
			return "", fmt.Errorf("remote schema loading is disabled")
		}
		return location, nil
	}
	if sl.BaseDir != "" {
		return filepath.Abs(filepath.Join(sl.BaseDir, location))
	}
	return filepath.Abs(location)
}

// resolveRelative resolves a relative location based on a base location
func (sl *SchemaLoader) resolveRelative(relative, base string) string {
	if filepath.IsAbs(relative) || isRemote(relative) {
		return relative
	}
	if isRemote(base) {
		baseURL, err := url.Parse(base)
		if err != nil {
			return relative
		}
		relURL, err := baseURL.Parse(relative)
		if err != nil {
			return relative
		}
		return relURL.String()
	}
	return filepath.Join(filepath.Dir(base), relative)
}

func (sl *SchemaLoader) loadDocument(location string) (xmldom.Document, error) {
	var reader io.ReadCloser

	if isRemote(location) {
		resp, err := sl.httpClient.Get(location)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, location)
		}
		reader = resp.Body
	} else {
		file, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		reader = file
	}
	defer reader.Close()

	doc, err := xmldom.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return doc, nil
}

// mergeComponents copies components the target does not have yet. Imported
// components keep their own namespace, so includes and imports merge alike.
func mergeComponents(source, target *Schema) {
	for qname, elem := range source.ElementDecls {
		if _, exists := target.ElementDecls[qname]; !exists {
			target.ElementDecls[qname] = elem
		}
	}
	for qname, typ := range source.TypeDefs {
		if _, exists := target.TypeDefs[qname]; !exists {
			target.TypeDefs[qname] = typ
		}
	}
	for qname, ag := range source.AttributeGroups {
		if _, exists := target.AttributeGroups[qname]; !exists {
			target.AttributeGroups[qname] = ag
		}
	}
	for qname, mg := range source.Groups {
		if _, exists := target.Groups[qname]; !exists {
			target.Groups[qname] = mg
		}
	}
	target.Imports = append(target.Imports, source.Imports...)
}

// LoadSchemaWithImports is a convenience function
func LoadSchemaWithImports(location string) (*Schema, error) {
	if isRemote(location) {
		loader := NewSchemaLoader("")
		loader.AllowRemote = true
		return loader.LoadSchemaWithImports(location)
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve location %s: %w", location, err)
	}
	loader := NewSchemaLoader(filepath.Dir(abs))
	return loader.LoadSchemaWithImports(abs)
}
