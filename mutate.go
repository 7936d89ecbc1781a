package xsdfix

import (
	"github.com/beevik/etree"
)

// Engine is the entry point for structural edits. Every insert goes
// through the schema ordering so a parent's children stay in content-model
// order.
type Engine struct {
	Index  *Index
	Policy DedupePolicy
}

// NewEngine creates an engine with the default dedupe policy.
func NewEngine(idx *Index) *Engine {
	return &Engine{Index: idx, Policy: DefaultDedupePolicy()}
}

// InsertAndReorder appends child to parent and sorts parent's children.
// On error the child stays appended; callers abandon the document.
func (en *Engine) InsertAndReorder(parent, child *etree.Element) error {
	parent.AddChild(child)
	return SortChildren(en.Index, parent)
}

// Sort orders e's children by the schema.
func (en *Engine) Sort(e *etree.Element) error {
	return SortChildren(en.Index, e)
}

// Dedupe removes adjacent duplicate children of e.
func (en *Engine) Dedupe(e *etree.Element) error {
	return DedupeAdjacent(e, en.Policy)
}

// SortAndDedupe sorts e's children and then removes adjacent duplicates.
func (en *Engine) SortAndDedupe(e *etree.Element) error {
	if err := en.Sort(e); err != nil {
		return err
	}
	return en.Dedupe(e)
}

// GetOrCreate returns parent's first child named name, creating and
// inserting an empty one if there is none.
func (en *Engine) GetOrCreate(parent *etree.Element, name QName) (*etree.Element, error) {
	for _, c := range parent.ChildElements() {
		if ElementName(c) == name {
			return c, nil
		}
	}
	child := NewElement(parent, name)
	if err := en.InsertAndReorder(parent, child); err != nil {
		return nil, err
	}
	return child, nil
}

// Rename walks the tree under root and renames every element for which
// match returns true, keeping its prefix. It returns the number of renamed
// elements.
func (en *Engine) Rename(root *etree.Element, match func(QName) bool, rename func(local string) string) int {
	return RenameElements(root, match, rename)
}

// RenameElements is Engine.Rename without an engine; renames need no schema.
func RenameElements(root *etree.Element, match func(QName) bool, rename func(local string) string) int {
	n := 0
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if match(ElementName(e)) {
			if next := rename(e.Tag); next != e.Tag {
				e.Tag = next
				n++
			}
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(root)
	return n
}
