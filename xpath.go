package xsdfix

import (
	"fmt"
	"strings"

	"github.com/antchfx/xpath"
	"github.com/beevik/etree"
)

// Query is a compiled XPath 1.0 expression evaluated over etree trees.
type Query struct {
	expr *xpath.Expr
}

// CompileQuery compiles expr; prefixes in name tests resolve through ns.
func CompileQuery(expr string, ns map[string]string) (*Query, error) {
	compiled, err := xpath.CompileWithNS(expr, ns)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return &Query{expr: compiled}, nil
}

// MustCompileQuery is like CompileQuery but panics on error. It is meant
// for package-level queries.
func MustCompileQuery(expr string, ns map[string]string) *Query {
	q, err := CompileQuery(expr, ns)
	if err != nil {
		panic(err)
	}
	return q
}

// PathQuery builds an absolute query for path.
func PathQuery(path []QName) (*Query, error) {
	ns := make(map[string]string)
	prefixes := make(map[string]string)
	var sb strings.Builder
	for _, q := range path {
		sb.WriteByte('/')
		if q.Namespace != "" {
			p, ok := prefixes[q.Namespace]
			if !ok {
				p = fmt.Sprintf("n%d", len(prefixes))
				prefixes[q.Namespace] = p
				ns[p] = q.Namespace
			}
			sb.WriteString(p)
			sb.WriteByte(':')
		}
		sb.WriteString(q.Local)
	}
	return CompileQuery(sb.String(), ns)
}

// String returns the source expression.
func (q *Query) String() string { return q.expr.String() }

// Select returns the elements matched from context node e, in document order.
func (q *Query) Select(e *etree.Element) []*etree.Element {
	var out []*etree.Element
	iter := q.expr.Select(newNavigator(e))
	for iter.MoveNext() {
		if nav, ok := iter.Current().(*navigator); ok {
			if el, ok := nav.cur.(*etree.Element); ok && nav.attr < 0 && !nav.atRoot() {
				out = append(out, el)
			}
		}
	}
	return out
}

// SelectOne returns the first match or nil.
func (q *Query) SelectOne(e *etree.Element) *etree.Element {
	iter := q.expr.Select(newNavigator(e))
	for iter.MoveNext() {
		if nav, ok := iter.Current().(*navigator); ok {
			if el, ok := nav.cur.(*etree.Element); ok && nav.attr < 0 && !nav.atRoot() {
				return el
			}
		}
	}
	return nil
}

// One returns the single match, or a MissingNodeError when there is none
// or more than one.
func (q *Query) One(e *etree.Element) (*etree.Element, error) {
	matches := q.Select(e)
	if len(matches) != 1 {
		return nil, &MissingNodeError{Expr: q.String(), Found: len(matches)}
	}
	return matches[0], nil
}

// First returns the first match, or a MissingNodeError when there is none.
func (q *Query) First(e *etree.Element) (*etree.Element, error) {
	if m := q.SelectOne(e); m != nil {
		return m, nil
	}
	return nil, &MissingNodeError{Expr: q.String()}
}

// navigator implements xpath.NodeNavigator over an etree tree. The root
// node is the document's embedded element, or the topmost ancestor of a
// detached tree.
type navigator struct {
	root *etree.Element
	cur  etree.Token
	attr int // index into cur's Attr, or -1
}

func newNavigator(e *etree.Element) *navigator {
	root := e
	for root.Parent() != nil {
		root = root.Parent()
	}
	return &navigator{root: root, cur: e, attr: -1}
}

func (n *navigator) atRoot() bool {
	el, ok := n.cur.(*etree.Element)
	return ok && el == n.root && isDocumentNode(el)
}

func (n *navigator) element() *etree.Element {
	el, _ := n.cur.(*etree.Element)
	return el
}

func (n *navigator) NodeType() xpath.NodeType {
	if n.attr >= 0 {
		return xpath.AttributeNode
	}
	switch n.cur.(type) {
	case *etree.Element:
		if n.atRoot() {
			return xpath.RootNode
		}
		return xpath.ElementNode
	case *etree.CharData:
		return xpath.TextNode
	case *etree.Comment:
		return xpath.CommentNode
	}
	return xpath.ElementNode
}

func (n *navigator) LocalName() string {
	if n.attr >= 0 {
		return n.element().Attr[n.attr].Key
	}
	if el := n.element(); el != nil {
		return el.Tag
	}
	return ""
}

func (n *navigator) Prefix() string {
	if n.attr >= 0 {
		return n.element().Attr[n.attr].Space
	}
	if el := n.element(); el != nil {
		return el.Space
	}
	return ""
}

// NamespaceURL is used by name tests compiled with namespaces.
func (n *navigator) NamespaceURL() string {
	if n.attr >= 0 {
		a := n.element().Attr[n.attr]
		if a.Space == "" {
			return ""
		}
		return LookupPrefix(n.element(), a.Space)
	}
	if el := n.element(); el != nil {
		return el.NamespaceURI()
	}
	return ""
}

func (n *navigator) Value() string {
	if n.attr >= 0 {
		return n.element().Attr[n.attr].Value
	}
	switch t := n.cur.(type) {
	case *etree.Element:
		var sb strings.Builder
		collectText(t, &sb)
		return sb.String()
	case *etree.CharData:
		return t.Data
	case *etree.Comment:
		return t.Data
	}
	return ""
}

func collectText(e *etree.Element, sb *strings.Builder) {
	for _, t := range e.Child {
		switch c := t.(type) {
		case *etree.CharData:
			sb.WriteString(c.Data)
		case *etree.Element:
			collectText(c, sb)
		}
	}
}

func (n *navigator) Copy() xpath.NodeNavigator {
	c := *n
	return &c
}

func (n *navigator) MoveToRoot() {
	n.cur = n.root
	n.attr = -1
}

func (n *navigator) MoveToParent() bool {
	if n.attr >= 0 {
		n.attr = -1
		return true
	}
	parent := n.cur.Parent()
	if parent == nil {
		return false
	}
	n.cur = parent
	return true
}

func (n *navigator) MoveToNextAttribute() bool {
	el := n.element()
	if el == nil || n.atRoot() {
		return false
	}
	for i := n.attr + 1; i < len(el.Attr); i++ {
		a := el.Attr[i]
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		n.attr = i
		return true
	}
	return false
}

// navigable reports whether a token is visible to XPath.
func navigable(t etree.Token) bool {
	switch t.(type) {
	case *etree.Element, *etree.CharData, *etree.Comment:
		return true
	}
	return false
}

func (n *navigator) MoveToChild() bool {
	if n.attr >= 0 {
		return false
	}
	el := n.element()
	if el == nil {
		return false
	}
	for _, t := range el.Child {
		if navigable(t) {
			n.cur = t
			return true
		}
	}
	return false
}

func (n *navigator) MoveToFirst() bool {
	if n.attr >= 0 {
		return false
	}
	parent := n.cur.Parent()
	if parent == nil {
		return false
	}
	for _, t := range parent.Child {
		if navigable(t) {
			n.cur = t
			return true
		}
	}
	return false
}

func (n *navigator) MoveToNext() bool {
	if n.attr >= 0 {
		return false
	}
	parent := n.cur.Parent()
	if parent == nil {
		return false
	}
	for i := n.cur.Index() + 1; i < len(parent.Child); i++ {
		if navigable(parent.Child[i]) {
			n.cur = parent.Child[i]
			return true
		}
	}
	return false
}

func (n *navigator) MoveToPrevious() bool {
	if n.attr >= 0 {
		return false
	}
	parent := n.cur.Parent()
	if parent == nil {
		return false
	}
	for i := n.cur.Index() - 1; i >= 0; i-- {
		if navigable(parent.Child[i]) {
			n.cur = parent.Child[i]
			return true
		}
	}
	return false
}

func (n *navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*navigator)
	if !ok || o.root != n.root {
		return false
	}
	n.cur = o.cur
	n.attr = o.attr
	return true
}
