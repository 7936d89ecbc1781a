package xsdfix

import (
	"slices"
	"strings"
	"sync"
)

// Index answers content-model questions about a Schema by element path.
// It is safe for concurrent use; results are memoized per path.
type Index struct {
	schema *Schema

	mu   sync.RWMutex
	memo map[string][]childDecl
}

// childDecl is one entry of a flattened content model.
type childDecl struct {
	Name QName
	Type Type
}

// NewIndex creates an index over schema.
func NewIndex(schema *Schema) *Index {
	return &Index{
		schema: schema,
		memo:   make(map[string][]childDecl),
	}
}

// Schema returns the indexed schema.
func (idx *Index) Schema() *Schema { return idx.schema }

// OrderedChildren returns the names of the children allowed under the
// element at path, in content-model declaration order.
func (idx *Index) OrderedChildren(path []QName) ([]QName, error) {
	children, err := idx.childrenAt(path)
	if err != nil {
		return nil, err
	}
	names := make([]QName, len(children))
	for i, c := range children {
		names[i] = c.Name
	}
	return names, nil
}

func pathKey(path []QName) string {
	parts := make([]string, len(path))
	for i, q := range path {
		parts[i] = q.String()
	}
	return strings.Join(parts, "/")
}

func (idx *Index) childrenAt(path []QName) ([]childDecl, error) {
	if len(path) == 0 {
		return nil, &SchemaPathError{Path: path}
	}
	key := pathKey(path)

	idx.mu.RLock()
	cached, ok := idx.memo[key]
	idx.mu.RUnlock()
	if ok {
		return cached, nil
	}

	t, err := idx.typeAt(path)
	if err != nil {
		return nil, err
	}
	children := idx.flattenType(t, make(map[QName]bool))

	idx.mu.Lock()
	idx.memo[key] = children
	idx.mu.Unlock()
	return children, nil
}

// typeAt resolves the declared type of the element at path.
func (idx *Index) typeAt(path []QName) (Type, error) {
	if len(path) == 1 {
		decl, ok := idx.globalElement(path[0])
		if !ok {
			return nil, &SchemaPathError{Path: path, Step: 0}
		}
		return idx.schema.LookupType(decl.Type), nil
	}

	siblings, err := idx.childrenAt(path[:len(path)-1])
	if err != nil {
		return nil, err
	}
	last := path[len(path)-1]
	for _, c := range siblings {
		if c.Name == last {
			return c.Type, nil
		}
	}
	return nil, &SchemaPathError{Path: path, Step: len(path) - 1}
}

func (idx *Index) globalElement(name QName) (*ElementDecl, bool) {
	idx.schema.mu.RLock()
	defer idx.schema.mu.RUnlock()
	decl, ok := idx.schema.ElementDecls[name]
	return decl, ok
}

func (idx *Index) typeByName(name QName) Type {
	idx.schema.mu.RLock()
	t, ok := idx.schema.TypeDefs[name]
	idx.schema.mu.RUnlock()
	if ok {
		return t
	}
	return idx.schema.LookupType(&SimpleType{QName: name})
}

// flattenType lists the element children of t in declaration order.
// visiting guards against derivation cycles.
func (idx *Index) flattenType(t Type, visiting map[QName]bool) []childDecl {
	ct, ok := t.(*ComplexType)
	if !ok {
		return nil
	}
	if ct.QName.Local != "_anonymous" {
		if visiting[ct.QName] {
			return nil
		}
		visiting[ct.QName] = true
		defer delete(visiting, ct.QName)
	}

	var out []childDecl
	seen := make(map[QName]bool)
	add := func(c childDecl) {
		if !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c)
		}
	}

	switch content := ct.Content.(type) {
	case *ComplexContent:
		if ext := content.Extension; ext != nil {
			for _, c := range idx.flattenType(idx.typeByName(ext.Base), visiting) {
				add(c)
			}
			idx.flattenContent(ext.Content, add, make(map[QName]bool))
		} else if r := content.Restriction; r != nil {
			idx.flattenContent(r.Content, add, make(map[QName]bool))
		}
	default:
		idx.flattenContent(content, add, make(map[QName]bool))
	}
	return out
}

// flattenContent walks a model group, group reference or particle.
func (idx *Index) flattenContent(content Content, add func(childDecl), groups map[QName]bool) {
	switch c := content.(type) {
	case *ModelGroup:
		for _, p := range c.Particles {
			idx.flattenContent(p, add, groups)
		}
	case *GroupRef:
		if groups[c.Ref] {
			return
		}
		groups[c.Ref] = true
		idx.schema.mu.RLock()
		group, ok := idx.schema.Groups[c.Ref]
		idx.schema.mu.RUnlock()
		if ok {
			idx.flattenContent(group, add, groups)
		}
	case *ElementDecl:
		add(childDecl{Name: c.Name, Type: idx.schema.LookupType(c.Type)})
	case *ElementRef:
		if decl, ok := idx.globalElement(c.Ref); ok {
			add(childDecl{Name: c.Ref, Type: idx.schema.LookupType(decl.Type)})
		} else {
			add(childDecl{Name: c.Ref})
		}
		for _, member := range idx.substitutes(c.Ref) {
			if decl, ok := idx.globalElement(member); ok {
				add(childDecl{Name: member, Type: idx.schema.LookupType(decl.Type)})
			}
		}
	}
	// xs:any and anything else contributes no names
}

// substitutes returns the transitive substitution-group members of head.
func (idx *Index) substitutes(head QName) []QName {
	idx.schema.mu.RLock()
	defer idx.schema.mu.RUnlock()

	var out []QName
	queue := []QName{head}
	seen := map[QName]bool{head: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, m := range idx.schema.SubstitutionGroups[cur] {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
				queue = append(queue, m)
			}
		}
	}
	return out
}

// DeclaresAttribute reports whether the type of the element at path
// declares an attribute with the given local name.
func (idx *Index) DeclaresAttribute(path []QName, local string) (bool, error) {
	t, err := idx.typeAt(path)
	if err != nil {
		return false, err
	}
	return idx.hasAttribute(t, local, make(map[QName]bool)), nil
}

func (idx *Index) hasAttribute(t Type, local string, visiting map[QName]bool) bool {
	ct, ok := t.(*ComplexType)
	if !ok {
		return false
	}
	if visiting[ct.QName] && ct.QName.Local != "_anonymous" {
		return false
	}
	visiting[ct.QName] = true

	attrs := append([]*AttributeDecl{}, ct.Attributes...)
	attrs = append(attrs, idx.schema.ResolveAttributeGroups(ct)...)
	var base QName
	if cc, ok := ct.Content.(*ComplexContent); ok && cc.Extension != nil {
		attrs = append(attrs, cc.Extension.Attributes...)
		attrs = append(attrs, idx.schema.ResolveAttributeGroups(&ComplexType{AttributeGroup: cc.Extension.AttributeGroup})...)
		base = cc.Extension.Base
	}
	for _, a := range attrs {
		if a.Name.Local == local && a.Use != ProhibitedUse {
			return true
		}
	}
	if base != (QName{}) {
		return idx.hasAttribute(idx.typeByName(base), local, visiting)
	}
	return false
}

// ElementPathsWithAttribute returns every element path reachable from the
// schema's root elements whose type declares the attribute local. A type
// is not expanded again below itself.
func (idx *Index) ElementPathsWithAttribute(local string) [][]QName {
	var out [][]QName
	for _, root := range idx.RootElements() {
		path := []QName{root}
		t, err := idx.typeAt(path)
		if err != nil {
			continue
		}
		idx.collectAttributePaths(path, t, local, map[Type]bool{}, &out)
	}
	return out
}

func (idx *Index) collectAttributePaths(path []QName, t Type, local string, onPath map[Type]bool, out *[][]QName) {
	if t != nil && idx.hasAttribute(t, local, make(map[QName]bool)) {
		*out = append(*out, slices.Clone(path))
	}
	if t == nil || onPath[t] {
		return
	}
	onPath[t] = true
	defer delete(onPath, t)

	children, err := idx.childrenAt(path)
	if err != nil {
		return
	}
	for _, c := range children {
		idx.collectAttributePaths(append(path, c.Name), c.Type, local, onPath, out)
	}
}

// RootElements returns the global elements that no content model refers
// to, sorted by name. For a document schema these are the possible
// document roots.
func (idx *Index) RootElements() []QName {
	s := idx.schema
	s.mu.RLock()
	defer s.mu.RUnlock()

	referenced := make(map[QName]bool)
	var mark func(c Content, groups map[QName]bool)
	mark = func(c Content, groups map[QName]bool) {
		switch v := c.(type) {
		case *ModelGroup:
			for _, p := range v.Particles {
				mark(p, groups)
			}
		case *GroupRef:
			if !groups[v.Ref] {
				groups[v.Ref] = true
				if g, ok := s.Groups[v.Ref]; ok {
					mark(g, groups)
				}
			}
		case *ElementRef:
			referenced[v.Ref] = true
		case *ElementDecl:
			// named types are visited through TypeDefs
			if ct, ok := v.Type.(*ComplexType); ok && ct.QName.Local == "_anonymous" {
				markType(ct, mark)
			}
		}
	}
	for _, t := range s.TypeDefs {
		markType(t, mark)
	}
	for _, decl := range s.ElementDecls {
		mark(decl, map[QName]bool{})
	}

	var roots []QName
	for name, decl := range s.ElementDecls {
		if !referenced[name] && decl.SubstitutionGroup.Local == "" && !decl.Abstract {
			roots = append(roots, name)
		}
	}
	slices.SortFunc(roots, func(a, b QName) int { return strings.Compare(a.String(), b.String()) })
	return roots
}

func markType(t Type, mark func(Content, map[QName]bool)) {
	ct, ok := t.(*ComplexType)
	if !ok {
		return
	}
	switch c := ct.Content.(type) {
	case *ComplexContent:
		if c.Extension != nil {
			mark(c.Extension.Content, map[QName]bool{})
		}
		if c.Restriction != nil {
			mark(c.Restriction.Content, map[QName]bool{})
		}
	default:
		mark(c, map[QName]bool{})
	}
}
