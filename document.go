package xsdfix

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

// DefaultIndent is the number of spaces used when a document is serialized.
const DefaultIndent = 2

// Document is an XML document loaded for transformation. It is owned by a
// single worker from load to save.
type Document struct {
	*etree.Document
	Path   string
	Indent int
}

// NewDocument wraps an etree document.
func NewDocument(doc *etree.Document, path string) *Document {
	return &Document{Document: doc, Path: path, Indent: DefaultIndent}
}

// LoadDocument reads and parses the XML file at path. Whitespace-only text
// between elements is dropped; Bytes re-creates the indentation.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// ParseDocument parses XML from memory.
func ParseDocument(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("no root element")
	}
	doc.IndentWithSettings(indentSettings(etree.NoIndent))
	return NewDocument(doc, ""), nil
}

// Bytes serializes the document with indentation and an XML declaration.
// The in-memory tree is left untouched.
func (d *Document) Bytes() ([]byte, error) {
	out := d.Document.Copy()
	if !hasDeclaration(out) {
		out.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="UTF-8"`))
	}
	indent := d.Indent
	if indent <= 0 {
		indent = DefaultIndent
	}
	out.IndentWithSettings(indentSettings(indent))
	return out.WriteToBytes()
}

// indentSettings keeps whitespace-only text such as <FieldValue> </FieldValue>.
func indentSettings(spaces int) *etree.IndentSettings {
	s := etree.NewIndentSettings()
	s.Spaces = spaces
	s.PreserveLeafWhitespace = true
	return s
}

// Save serializes the document to path, replacing any existing file
// atomically.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	return WriteFileAtomic(path, data, 0o644)
}

func hasDeclaration(doc *etree.Document) bool {
	for _, t := range doc.Child {
		if p, ok := t.(*etree.ProcInst); ok && p.Target == "xml" {
			return true
		}
	}
	return false
}

// WriteFileAtomic writes data to a temp file in the destination directory
// and renames it over path, so readers see the old file or the new one.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ElementName returns the element's qualified name, resolving its prefix
// through the in-scope xmlns declarations.
func ElementName(e *etree.Element) QName {
	return QName{Namespace: e.NamespaceURI(), Local: e.Tag}
}

// ElementPath returns the qualified names from the document root down to e.
func ElementPath(e *etree.Element) []QName {
	var path []QName
	for cur := e; cur != nil && !isDocumentNode(cur); cur = cur.Parent() {
		path = append(path, ElementName(cur))
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// isDocumentNode reports whether e is the element embedded in an
// etree.Document, which holds the root but is never serialized.
func isDocumentNode(e *etree.Element) bool {
	return e.Parent() == nil && e.Tag == "" && e.Space == ""
}

// LookupPrefix returns the namespace URI bound to prefix at e, or "" when
// the prefix is not declared.
func LookupPrefix(e *etree.Element, prefix string) string {
	for cur := e; cur != nil; cur = cur.Parent() {
		for _, a := range cur.Attr {
			if prefix == "" && a.Space == "" && a.Key == "xmlns" {
				return a.Value
			}
			if prefix != "" && a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

// PrefixFor returns the prefix bound to namespace at e, searching e and its
// ancestors. ok is false when no binding is in scope.
func PrefixFor(e *etree.Element, namespace string) (prefix string, ok bool) {
	for cur := e; cur != nil; cur = cur.Parent() {
		for _, a := range cur.Attr {
			if a.Value != namespace {
				continue
			}
			if a.Space == "xmlns" {
				return a.Key, true
			}
			if a.Space == "" && a.Key == "xmlns" {
				return "", true
			}
		}
	}
	return "", false
}

// NewElement creates a detached element named name, using the prefix the
// intended parent already binds for its namespace. If nothing binds it, the
// element carries its own default namespace declaration.
func NewElement(parent *etree.Element, name QName) *etree.Element {
	if name.Namespace == "" {
		return etree.NewElement(name.Local)
	}
	prefix, ok := PrefixFor(parent, name.Namespace)
	if !ok {
		e := etree.NewElement(name.Local)
		e.CreateAttr("xmlns", name.Namespace)
		return e
	}
	if prefix == "" {
		return etree.NewElement(name.Local)
	}
	return etree.NewElement(prefix + ":" + name.Local)
}

// SubElement creates a child named like local in parent's namespace and
// appends it without reordering. It is meant for building detached subtrees
// that are later inserted through an Engine.
func SubElement(parent *etree.Element, local, text string) *etree.Element {
	tag := local
	if parent.Space != "" {
		tag = parent.Space + ":" + local
	}
	child := parent.CreateElement(tag)
	if text != "" {
		child.SetText(text)
	}
	return child
}
