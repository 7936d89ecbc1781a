package xsdfix

import (
	"slices"

	"github.com/beevik/etree"
)

// SortChildren reorders e's children to follow the content model declared
// for e's path. Equal keys keep their relative order. Comments and other
// non-element tokens go after all elements; whitespace-only text is dropped
// and re-created when the document is indented.
func SortChildren(idx *Index, e *etree.Element) error {
	path := ElementPath(e)
	ordered, err := idx.OrderedChildren(path)
	if err != nil {
		return err
	}

	position := make(map[QName]int, len(ordered))
	for i, name := range ordered {
		position[name] = i
	}

	type keyed struct {
		key   int
		token etree.Token
	}
	tokens := make([]keyed, 0, len(e.Child))
	last := -1
	for _, t := range e.Child {
		switch tok := t.(type) {
		case *etree.Element:
			name := ElementName(tok)
			key, ok := position[name]
			if !ok {
				return &UnknownChildError{Parent: path, Child: name, Allowed: ordered}
			}
			last = key
			tokens = append(tokens, keyed{key, tok})
		case *etree.CharData:
			if tok.IsWhitespace() {
				continue
			}
			// text stays with whatever precedes it; leading text stays first
			tokens = append(tokens, keyed{last, tok})
		default:
			tokens = append(tokens, keyed{len(ordered), tok})
		}
	}

	slices.SortStableFunc(tokens, func(a, b keyed) int { return a.key - b.key })

	children := make([]etree.Token, len(tokens))
	for i, k := range tokens {
		children[i] = k.token
	}
	e.Child = children
	e.ReindexChildren()
	return nil
}
