package xsdfix

import (
	"fmt"

	"github.com/beevik/etree"
)

// InstanceNamespace is the XML Schema instance namespace.
const InstanceNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Binding is a namespace prefix and the URI it stands for.
type Binding struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	URI    string `yaml:"uri" json:"uri"`
}

// Namespaces are the canonical bindings a repaired document declares on its
// root element.
type Namespaces struct {
	Primary        Binding `yaml:"primary" json:"primary"`
	Instance       Binding `yaml:"instance" json:"instance"`
	SchemaLocation string  `yaml:"schemaLocation" json:"schemaLocation"`
}

// InstanceBinding returns the instance binding, defaulting to xsi.
func (ns Namespaces) InstanceBinding() Binding {
	if ns.Instance.URI == "" {
		return Binding{Prefix: "xsi", URI: InstanceNamespace}
	}
	return ns.Instance
}

// NeedsNamespaceRepair reports whether the document root lacks the primary
// or the instance binding.
func NeedsNamespaceRepair(doc *Document, ns Namespaces) bool {
	root := doc.Root()
	if root == nil {
		return true
	}
	return !declares(root, ns.Primary) || !declares(root, ns.InstanceBinding())
}

func declares(e *etree.Element, b Binding) bool {
	for _, a := range e.Attr {
		if a.Space == "xmlns" && a.Key == b.Prefix && a.Value == b.URI {
			return true
		}
	}
	return false
}

// RepairNamespaces returns a copy of doc whose root declares the canonical
// bindings and whose elements are all re-created under them. doc itself is
// not modified. Element order, attributes, text and comments are preserved.
func RepairNamespaces(doc *Document, ns Namespaces) (*Document, error) {
	src := doc.Root()
	if src == nil {
		return nil, &MalformedTreeError{Reason: "document has no root element"}
	}

	r := repairer{ns: ns, instance: ns.InstanceBinding()}
	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root, err := r.clone(src, &out.Element, true)
	if err != nil {
		return nil, err
	}
	if ns.SchemaLocation != "" && root.SelectAttr(r.instance.Prefix+":schemaLocation") == nil {
		root.CreateAttr(r.instance.Prefix+":schemaLocation", ns.SchemaLocation)
	}

	repaired := NewDocument(out, doc.Path)
	repaired.Indent = doc.Indent
	return repaired, nil
}

type repairer struct {
	ns       Namespaces
	instance Binding
	// prefixes generated for foreign URIs whose source prefix is taken by
	// a canonical binding
	generated map[string]string
}

// generatedPrefix returns a stable ns<N> prefix for uri.
func (r *repairer) generatedPrefix(uri string) string {
	if p, ok := r.generated[uri]; ok {
		return p
	}
	if r.generated == nil {
		r.generated = map[string]string{}
	}
	p := fmt.Sprintf("ns%d", len(r.generated))
	r.generated[uri] = p
	return p
}

// bindGenerated declares the generated prefix for uri on e unless it is
// already in scope, and returns it.
func (r *repairer) bindGenerated(e *etree.Element, uri string) string {
	p := r.generatedPrefix(uri)
	if LookupPrefix(e, p) != uri {
		e.CreateAttr("xmlns:"+p, uri)
	}
	return p
}

func (r *repairer) clone(src, parent *etree.Element, isRoot bool) (*etree.Element, error) {
	if src.Tag == "" {
		return nil, &MalformedTreeError{Path: src.GetPath(), Reason: "element without a name"}
	}

	uri := src.NamespaceURI()
	space := src.Space
	if space != "" && space == r.ns.Primary.Prefix {
		// the primary prefix bound to another URI, usually an older schema
		// version: the element belongs to the primary namespace
		uri = r.ns.Primary.URI
	}
	var dst *etree.Element
	switch {
	case uri == "" || uri == r.ns.Primary.URI:
		dst = parent.CreateElement(qualify(r.ns.Primary.Prefix, src.Tag))
	case uri == r.instance.URI:
		dst = parent.CreateElement(qualify(r.instance.Prefix, src.Tag))
	default:
		if space != "" && space == r.instance.Prefix {
			space = r.generatedPrefix(uri)
		}
		dst = parent.CreateElement(qualify(space, src.Tag))
	}

	if isRoot {
		dst.CreateAttr("xmlns:"+r.ns.Primary.Prefix, r.ns.Primary.URI)
		dst.CreateAttr("xmlns:"+r.instance.Prefix, r.instance.URI)
	}

	for i := range src.Attr {
		a := &src.Attr[i]
		if a.Key == "" {
			return nil, &MalformedTreeError{Path: src.GetPath(), Reason: "attribute without a name"}
		}
		key, keep := r.attrKey(src, dst, a)
		if keep {
			dst.CreateAttr(key, a.Value)
		}
	}

	// names outside the canonical namespaces keep their own binding
	if uri != "" && uri != r.ns.Primary.URI && uri != r.instance.URI {
		if p, ok := PrefixFor(dst, uri); !ok || p != space {
			if space == "" {
				dst.CreateAttr("xmlns", uri)
			} else {
				dst.CreateAttr("xmlns:"+space, uri)
			}
		}
	}

	for _, t := range src.Child {
		switch tok := t.(type) {
		case *etree.Element:
			if _, err := r.clone(tok, dst, false); err != nil {
				return nil, err
			}
		case *etree.CharData:
			if tok.IsCData() {
				dst.CreateCData(tok.Data)
			} else {
				dst.CreateText(tok.Data)
			}
		case *etree.Comment:
			dst.CreateComment(tok.Data)
		case *etree.ProcInst:
			dst.CreateProcInst(tok.Target, tok.Inst)
		case *etree.Directive:
			dst.CreateDirective(tok.Data)
		}
	}
	return dst, nil
}

// attrKey maps a source attribute to its key in the repaired tree. keep is
// false for declarations the canonical bindings replace.
func (r *repairer) attrKey(owner, dst *etree.Element, a *etree.Attr) (key string, keep bool) {
	switch {
	case a.Space == "xmlns":
		if a.Key == r.ns.Primary.Prefix || a.Key == r.instance.Prefix ||
			a.Value == r.ns.Primary.URI || a.Value == r.instance.URI {
			return "", false
		}
		return a.FullKey(), true
	case a.Space == "" && a.Key == "xmlns":
		if a.Value == "" || a.Value == r.ns.Primary.URI {
			return "", false
		}
		return a.FullKey(), true
	case a.Space == "":
		return a.Key, true
	}

	uri := LookupPrefix(owner, a.Space)
	switch {
	case uri == r.instance.URI:
		return qualify(r.instance.Prefix, a.Key), true
	case uri == r.ns.Primary.URI || a.Space == r.ns.Primary.Prefix:
		return qualify(r.ns.Primary.Prefix, a.Key), true
	case uri == "" && (a.Space == "xsi" || a.Space == r.instance.Prefix):
		// unbound xsi prefix
		return qualify(r.instance.Prefix, a.Key), true
	case a.Space == r.instance.Prefix:
		return qualify(r.bindGenerated(dst, uri), a.Key), true
	}
	return a.FullKey(), true
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}
