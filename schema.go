package xsdfix

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/agentflare-ai/go-xmldom"
)

// XSDNamespace is the XML Schema namespace
const XSDNamespace = "http://www.w3.org/2001/XMLSchema"

// Schema is the structural view of a compiled XSD: element declarations,
// named types and groups. Only what is needed to answer content-model
// ordering questions is kept; facets and simple-type value spaces are not.
type Schema struct {
	mu                 sync.RWMutex
	TargetNamespace    string
	ElementDecls       map[QName]*ElementDecl
	TypeDefs           map[QName]Type
	AttributeGroups    map[QName]*AttributeGroup
	Groups             map[QName]*ModelGroup
	Imports            []*Import
	ImportedSchemas    map[string]*Schema // by location
	SubstitutionGroups map[QName][]QName  // head element -> members
	doc                xmldom.Document
}

// QName represents a qualified XML name
type QName struct {
	Namespace string
	Local     string
}

// String returns the string representation of a QName
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return fmt.Sprintf("{%s}%s", q.Namespace, q.Local)
}

// ElementDecl is an element declaration, global or local to a model group.
type ElementDecl struct {
	Name              QName
	Type              Type
	MinOcc            int
	MaxOcc            int // -1 for unbounded
	Abstract          bool
	SubstitutionGroup QName
}

// Type is implemented by SimpleType and ComplexType.
type Type interface {
	Name() QName
}

// SimpleType is kept only as a named placeholder; values are never checked.
type SimpleType struct {
	QName QName
	Base  QName
}

// ComplexType represents an XSD complex type
type ComplexType struct {
	QName          QName
	Content        Content
	Attributes     []*AttributeDecl
	AttributeGroup []QName
	Mixed          bool
	Abstract       bool
}

// Content is a complex type's content: a model group, a group reference,
// or simple/complex content derived from another type.
type Content interface{}

// SimpleContent represents simple content in a complex type
type SimpleContent struct {
	Base      QName
	Extension *Extension
}

// ComplexContent represents complex content derived by extension or
// restriction.
type ComplexContent struct {
	Mixed       bool
	Extension   *Extension
	Restriction *Restriction
}

// ModelGroup represents a group of particles
type ModelGroup struct {
	Kind      ModelGroupKind
	Particles []Particle
	MinOcc    int
	MaxOcc    int
}

// ModelGroupKind represents the kind of model group
type ModelGroupKind string

const (
	SequenceGroup ModelGroupKind = "sequence"
	ChoiceGroup   ModelGroupKind = "choice"
	AllGroup      ModelGroupKind = "all"
)

// Particle represents a particle in a content model
type Particle interface {
	MinOccurs() int
	MaxOccurs() int
}

// ElementRef represents a reference to a global element
type ElementRef struct {
	Ref    QName
	MinOcc int
	MaxOcc int
}

// GroupRef represents a reference to a named model group
type GroupRef struct {
	Ref    QName
	MinOcc int
	MaxOcc int
}

// AnyElement represents xs:any
type AnyElement struct {
	Namespace string
	MinOcc    int
	MaxOcc    int
}

// AttributeDecl represents an attribute declaration
type AttributeDecl struct {
	Name QName
	Use  AttributeUse
}

// AttributeUse represents attribute use
type AttributeUse string

const (
	OptionalUse   AttributeUse = "optional"
	RequiredUse   AttributeUse = "required"
	ProhibitedUse AttributeUse = "prohibited"
)

// AttributeGroup represents a named group of attributes
type AttributeGroup struct {
	Name       QName
	Attributes []*AttributeDecl
}

// Restriction carries the base type and, for complex content, the
// restricted content model.
type Restriction struct {
	Base    QName
	Content Content
}

// Extension represents type extension
type Extension struct {
	Base           QName
	Attributes     []*AttributeDecl
	AttributeGroup []QName
	Content        Content
}

// Import represents an xs:import
type Import struct {
	Namespace      string
	SchemaLocation string
}

func (st *SimpleType) Name() QName  { return st.QName }
func (ct *ComplexType) Name() QName { return ct.QName }

func (er *ElementRef) MinOccurs() int  { return er.MinOcc }
func (er *ElementRef) MaxOccurs() int  { return er.MaxOcc }
func (gr *GroupRef) MinOccurs() int    { return gr.MinOcc }
func (gr *GroupRef) MaxOccurs() int    { return gr.MaxOcc }
func (ae *AnyElement) MinOccurs() int  { return ae.MinOcc }
func (ae *AnyElement) MaxOccurs() int  { return ae.MaxOcc }
func (ed *ElementDecl) MinOccurs() int { return ed.MinOcc }
func (ed *ElementDecl) MaxOccurs() int { return ed.MaxOcc }
func (mg *ModelGroup) MinOccurs() int  { return mg.MinOcc }
func (mg *ModelGroup) MaxOccurs() int  { return mg.MaxOcc }

// LoadSchema loads and parses a single XSD file. Includes and imports are
// not followed; use SchemaLoader for that.
func LoadSchema(filename string) (*Schema, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	doc, err := xmldom.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML file: %w", err)
	}
	return Parse(doc)
}

// Parse parses an XSD schema from an XML document
func Parse(doc xmldom.Document) (*Schema, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	root := doc.DocumentElement()
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	if string(root.NamespaceURI()) != XSDNamespace || string(root.LocalName()) != "schema" {
		return nil, fmt.Errorf("not an XSD schema document")
	}

	schema := newSchema()
	schema.doc = doc
	if tns := root.GetAttribute("targetNamespace"); tns != "" {
		schema.TargetNamespace = string(tns)
	}

	forEachXSDChild(root, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "element":
			if decl := schema.parseElementDecl(child); decl != nil {
				schema.ElementDecls[decl.Name] = decl
			}
		case "simpleType":
			if name := string(child.GetAttribute("name")); name != "" {
				st := schema.parseSimpleType(child)
				st.QName = schema.localName(name)
				schema.TypeDefs[st.QName] = st
			}
		case "complexType":
			if name := string(child.GetAttribute("name")); name != "" {
				ct := schema.parseComplexType(child)
				ct.QName = schema.localName(name)
				schema.TypeDefs[ct.QName] = ct
			}
		case "attributeGroup":
			schema.parseAttributeGroup(child)
		case "group":
			schema.parseGroup(child)
		case "import":
			schema.Imports = append(schema.Imports, &Import{
				Namespace:      string(child.GetAttribute("namespace")),
				SchemaLocation: string(child.GetAttribute("schemaLocation")),
			})
		}
	})

	// Second pass: resolve type references
	schema.resolveReferences()

	return schema, nil
}

func newSchema() *Schema {
	return &Schema{
		ElementDecls:       make(map[QName]*ElementDecl),
		TypeDefs:           make(map[QName]Type),
		AttributeGroups:    make(map[QName]*AttributeGroup),
		Groups:             make(map[QName]*ModelGroup),
		ImportedSchemas:    make(map[string]*Schema),
		SubstitutionGroups: make(map[QName][]QName),
	}
}

// forEachXSDChild calls fn for every child element in the XSD namespace.
func forEachXSDChild(elem xmldom.Element, fn func(child xmldom.Element)) {
	children := elem.Children()
	for i := uint(0); i < children.Length(); i++ {
		child := children.Item(i)
		if child == nil || string(child.NamespaceURI()) != XSDNamespace {
			continue
		}
		fn(child)
	}
}

func (s *Schema) localName(name string) QName {
	return QName{Namespace: s.TargetNamespace, Local: name}
}

// parseElementDecl parses a named element declaration, global or inline.
// References (ref=) are handled by the model group parser.
func (s *Schema) parseElementDecl(elem xmldom.Element) *ElementDecl {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return nil
	}

	decl := &ElementDecl{
		Name:     s.localName(name),
		MinOcc:   s.parseOccurs(elem, "minOccurs", 1),
		MaxOcc:   s.parseOccurs(elem, "maxOccurs", 1),
		Abstract: string(elem.GetAttribute("abstract")) == "true",
	}
	if substGroup := string(elem.GetAttribute("substitutionGroup")); substGroup != "" {
		decl.SubstitutionGroup = s.parseQName(substGroup)
	}
	if typeName := string(elem.GetAttribute("type")); typeName != "" {
		decl.Type = s.resolveType(typeName)
	}

	// Inline (anonymous) type definitions
	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "simpleType":
			st := s.parseSimpleType(child)
			st.QName = s.localName("_anonymous")
			decl.Type = st
		case "complexType":
			ct := s.parseComplexType(child)
			ct.QName = s.localName("_anonymous")
			decl.Type = ct
		}
	})

	return decl
}

func (s *Schema) parseSimpleType(elem xmldom.Element) *SimpleType {
	st := &SimpleType{}
	forEachXSDChild(elem, func(child xmldom.Element) {
		if string(child.LocalName()) == "restriction" {
			st.Base = s.parseQName(string(child.GetAttribute("base")))
		}
	})
	return st
}

// parseComplexType parses the body of a named or anonymous complex type.
// The caller assigns the QName.
func (s *Schema) parseComplexType(elem xmldom.Element) *ComplexType {
	ct := &ComplexType{
		Mixed:      string(elem.GetAttribute("mixed")) == "true",
		Abstract:   string(elem.GetAttribute("abstract")) == "true",
		Attributes: make([]*AttributeDecl, 0),
	}

	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "simpleContent":
			sc := s.parseSimpleContent(child)
			ct.Content = sc
			if sc.Extension != nil {
				ct.Attributes = append(ct.Attributes, sc.Extension.Attributes...)
				ct.AttributeGroup = append(ct.AttributeGroup, sc.Extension.AttributeGroup...)
			}
		case "complexContent":
			ct.Content = s.parseComplexContent(child)
		case "sequence", "choice", "all":
			ct.Content = s.parseModelGroup(child)
		case "group":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ct.Content = s.parseGroupRef(child, ref)
			}
		case "attribute":
			if attr := s.parseAttribute(child); attr != nil {
				ct.Attributes = append(ct.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ct.AttributeGroup = append(ct.AttributeGroup, s.parseQName(ref))
			}
		}
	})

	return ct
}

func (s *Schema) parseSimpleContent(elem xmldom.Element) *SimpleContent {
	sc := &SimpleContent{}
	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "extension":
			sc.Extension = s.parseExtension(child)
			sc.Base = sc.Extension.Base
		case "restriction":
			sc.Base = s.parseQName(string(child.GetAttribute("base")))
		}
	})
	return sc
}

func (s *Schema) parseComplexContent(elem xmldom.Element) *ComplexContent {
	cc := &ComplexContent{Mixed: string(elem.GetAttribute("mixed")) == "true"}
	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "extension":
			cc.Extension = s.parseExtension(child)
		case "restriction":
			r := &Restriction{Base: s.parseQName(string(child.GetAttribute("base")))}
			r.Content = s.parseDerivedContent(child)
			cc.Restriction = r
		}
	})
	return cc
}

func (s *Schema) parseExtension(elem xmldom.Element) *Extension {
	ext := &Extension{
		Base:       s.parseQName(string(elem.GetAttribute("base"))),
		Attributes: make([]*AttributeDecl, 0),
	}
	ext.Content = s.parseDerivedContent(elem)
	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "attribute":
			if attr := s.parseAttribute(child); attr != nil {
				ext.Attributes = append(ext.Attributes, attr)
			}
		case "attributeGroup":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				ext.AttributeGroup = append(ext.AttributeGroup, s.parseQName(ref))
			}
		}
	})
	return ext
}

// parseDerivedContent returns the model group (or group reference) declared
// inside an extension or restriction, or nil.
func (s *Schema) parseDerivedContent(elem xmldom.Element) Content {
	var content Content
	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "sequence", "choice", "all":
			content = s.parseModelGroup(child)
		case "group":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				content = s.parseGroupRef(child, ref)
			}
		}
	})
	return content
}

func (s *Schema) parseGroupRef(elem xmldom.Element, ref string) *GroupRef {
	return &GroupRef{
		Ref:    s.parseQName(ref),
		MinOcc: s.parseOccurs(elem, "minOccurs", 1),
		MaxOcc: s.parseOccurs(elem, "maxOccurs", 1),
	}
}

func (s *Schema) parseModelGroup(elem xmldom.Element) *ModelGroup {
	mg := &ModelGroup{
		Kind:      ModelGroupKind(elem.LocalName()),
		MinOcc:    s.parseOccurs(elem, "minOccurs", 1),
		MaxOcc:    s.parseOccurs(elem, "maxOccurs", 1),
		Particles: make([]Particle, 0),
	}

	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "element":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				mg.Particles = append(mg.Particles, &ElementRef{
					Ref:    s.parseQName(ref),
					MinOcc: s.parseOccurs(child, "minOccurs", 1),
					MaxOcc: s.parseOccurs(child, "maxOccurs", 1),
				})
			} else if decl := s.parseElementDecl(child); decl != nil {
				mg.Particles = append(mg.Particles, decl)
			}
		case "group":
			if ref := string(child.GetAttribute("ref")); ref != "" {
				mg.Particles = append(mg.Particles, s.parseGroupRef(child, ref))
			}
		case "choice", "sequence", "all":
			mg.Particles = append(mg.Particles, s.parseModelGroup(child))
		case "any":
			mg.Particles = append(mg.Particles, &AnyElement{
				Namespace: string(child.GetAttribute("namespace")),
				MinOcc:    s.parseOccurs(child, "minOccurs", 1),
				MaxOcc:    s.parseOccurs(child, "maxOccurs", 1),
			})
		}
	})

	return mg
}

// parseOccurs parses minOccurs/maxOccurs attributes
func (s *Schema) parseOccurs(elem xmldom.Element, attr string, defaultValue int) int {
	value := string(elem.GetAttribute(xmldom.DOMString(attr)))
	if value == "" {
		return defaultValue
	}
	if value == "unbounded" {
		return -1
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return defaultValue
}

func (s *Schema) parseAttribute(elem xmldom.Element) *AttributeDecl {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		// attribute references keep their referenced local name
		ref := string(elem.GetAttribute("ref"))
		if ref == "" {
			return nil
		}
		return &AttributeDecl{Name: s.parseQName(ref), Use: attributeUse(elem)}
	}
	// attributes are unqualified unless attributeFormDefault says otherwise
	return &AttributeDecl{Name: QName{Local: name}, Use: attributeUse(elem)}
}

func attributeUse(elem xmldom.Element) AttributeUse {
	if use := string(elem.GetAttribute("use")); use != "" {
		return AttributeUse(use)
	}
	return OptionalUse
}

func (s *Schema) parseAttributeGroup(elem xmldom.Element) {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return
	}
	ag := &AttributeGroup{Name: s.localName(name), Attributes: make([]*AttributeDecl, 0)}
	forEachXSDChild(elem, func(child xmldom.Element) {
		if string(child.LocalName()) == "attribute" {
			if attr := s.parseAttribute(child); attr != nil {
				ag.Attributes = append(ag.Attributes, attr)
			}
		}
	})
	s.AttributeGroups[ag.Name] = ag
}

func (s *Schema) parseGroup(elem xmldom.Element) {
	name := string(elem.GetAttribute("name"))
	if name == "" {
		return
	}
	forEachXSDChild(elem, func(child xmldom.Element) {
		switch string(child.LocalName()) {
		case "sequence", "choice", "all":
			s.Groups[s.localName(name)] = s.parseModelGroup(child)
		}
	})
}

// parseQName resolves a prefixed name against the namespace declarations on
// the schema root. Unprefixed names belong to the target namespace.
func (s *Schema) parseQName(name string) QName {
	if name == "" {
		return QName{}
	}

	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return s.localName(name)
	}
	if prefix == "xs" || prefix == "xsd" {
		return QName{Namespace: XSDNamespace, Local: local}
	}
	if ns, found := s.lookupPrefix(prefix); found {
		return QName{Namespace: ns, Local: local}
	}
	// undeclared prefix: most schemas bind it to the target namespace
	return s.localName(local)
}

func (s *Schema) lookupPrefix(prefix string) (string, bool) {
	if s.doc == nil {
		return "", false
	}
	root := s.doc.DocumentElement()
	if root == nil {
		return "", false
	}
	attrs := root.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}
		if string(attr.NodeName()) == "xmlns:"+prefix {
			return string(attr.NodeValue()), true
		}
	}
	return "", false
}

// resolveType returns the named type if already parsed, otherwise a
// placeholder resolved in the second pass (or lazily by LookupType).
func (s *Schema) resolveType(name string) Type {
	qname := s.parseQName(name)
	if t, ok := s.TypeDefs[qname]; ok {
		return t
	}
	return &SimpleType{QName: qname}
}

// resolveReferences performs a second pass to resolve all type references
func (s *Schema) resolveReferences() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, decl := range s.ElementDecls {
		decl.Type = s.lookupType(decl.Type)
	}
	s.buildSubstitutionGroups()
}

// buildSubstitutionGroups records, for every head element, the elements
// that may appear in its place, sorted by local name.
func (s *Schema) buildSubstitutionGroups() {
	s.SubstitutionGroups = make(map[QName][]QName)
	for _, decl := range s.ElementDecls {
		if decl.SubstitutionGroup.Local == "" {
			continue
		}
		head := decl.SubstitutionGroup
		if head.Namespace == "" {
			head.Namespace = s.TargetNamespace
		}
		s.SubstitutionGroups[head] = append(s.SubstitutionGroups[head], decl.Name)
	}
	for _, members := range s.SubstitutionGroups {
		slices.SortFunc(members, func(a, b QName) int { return strings.Compare(a.Local, b.Local) })
	}
}

// LookupType replaces a placeholder type with its definition when one is
// known to the schema.
func (s *Schema) LookupType(t Type) Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupType(t)
}

func (s *Schema) lookupType(t Type) Type {
	st, ok := t.(*SimpleType)
	if !ok || st.Base != (QName{}) {
		return t
	}
	if actual, exists := s.TypeDefs[st.QName]; exists {
		return actual
	}
	for _, imported := range s.ImportedSchemas {
		if imported == s {
			continue
		}
		if actual, exists := imported.TypeDefs[st.QName]; exists {
			return actual
		}
	}
	return t
}

// ResolveAttributeGroups resolves all attribute group references for a complex type
func (s *Schema) ResolveAttributeGroups(ct *ComplexType) []*AttributeDecl {
	var attrs []*AttributeDecl

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, groupRef := range ct.AttributeGroup {
		if ag, ok := s.AttributeGroups[groupRef]; ok {
			attrs = append(attrs, ag.Attributes...)
		}
	}
	return attrs
}
