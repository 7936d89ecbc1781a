package bsync

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/agentflare-ai/go-xsdfix"
)

// FixTimestamps renames *TimeStamp elements to *Timestamp.
func (c *Catalogue) FixTimestamps(doc *xsdfix.Document) error {
	c.Engine.Rename(doc.Root(),
		func(q xsdfix.QName) bool { return strings.Contains(q.Local, "TimeStamp") },
		func(local string) string { return strings.ReplaceAll(local, "TimeStamp", "Timestamp") })
	return nil
}

// FixCalculationMethod sorts and dedupes every PackageOfMeasures and
// Scenario, which moves CalculationMethod and ResourceUses into place.
func (c *Catalogue) FixCalculationMethod(doc *xsdfix.Document) error {
	root := doc.Root()
	for _, q := range []*xsdfix.Query{pomQuery, scenarioQuery} {
		for _, e := range q.Select(root) {
			if err := c.Engine.SortAndDedupe(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// FixSubsections renames Subsection(s) to Section(s).
func (c *Catalogue) FixSubsections(doc *xsdfix.Document) error {
	c.Engine.Rename(doc.Root(),
		func(q xsdfix.QName) bool { return q.Namespace == URI && strings.HasPrefix(q.Local, "Subsection") },
		func(local string) string { return "Section" + strings.TrimPrefix(local, "Subsection") })
	return nil
}

// FixReport nests the single Facility/Report in a Reports container.
func (c *Catalogue) FixReport(doc *xsdfix.Document) error {
	reports := legacyReport.Select(doc.Root())
	if len(reports) != 1 {
		return &xsdfix.MissingNodeError{Expr: legacyReport.String(), Found: len(reports)}
	}
	report := reports[0]
	facility := report.Parent()
	facility.RemoveChild(report)

	container, err := c.Engine.GetOrCreate(facility, Name("Reports"))
	if err != nil {
		return err
	}
	return c.Engine.InsertAndReorder(container, report)
}

// FixPrimaryLightingSystemType moves LightingSystem/PrimaryLightingSystemType
// into a user defined field of the same name.
func (c *Catalogue) FixPrimaryLightingSystemType(doc *xsdfix.Document) error {
	var found int
	for _, system := range lightingSystem.Select(doc.Root()) {
		for {
			e := child(system, "PrimaryLightingSystemType")
			if e == nil {
				break
			}
			found++
			system.RemoveChild(e)
			if err := c.addUDFs(system, []UDF{{Name: "PrimaryLightingSystemType", Value: e.Text()}}); err != nil {
				return err
			}
		}
	}
	if found == 0 {
		return &xsdfix.MissingNodeError{Expr: "LightingSystem/PrimaryLightingSystemType"}
	}
	return nil
}

// FixOccupancyClassification replaces the retired Hotel classification
// with Lodging.
func (c *Catalogue) FixOccupancyClassification(doc *xsdfix.Document) error {
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if xsdfix.ElementName(e) == Name("OccupancyClassification") {
			e.SetText(strings.ReplaceAll(e.Text(), "Hotel", "Lodging"))
		}
		for _, ch := range e.ChildElements() {
			walk(ch)
		}
	}
	walk(doc.Root())
	return nil
}

// FixSchemaLocation rebuilds the document when its namespace bindings are
// not canonical and sets xsi:schemaLocation on the root.
func (c *Catalogue) FixSchemaLocation(doc *xsdfix.Document) (*xsdfix.Document, error) {
	ns := c.Options.Namespaces
	out := doc
	if xsdfix.NeedsNamespaceRepair(doc, ns) {
		repaired, err := xsdfix.RepairNamespaces(doc, ns)
		if err != nil {
			return nil, err
		}
		out = repaired
	}
	if ns.SchemaLocation == "" {
		return out, nil
	}

	root := out.Root()
	instance := ns.InstanceBinding()
	prefix, ok := xsdfix.PrefixFor(root, instance.URI)
	if !ok || prefix == "" {
		return nil, errors.Errorf("no prefix bound to %s on the root element", instance.URI)
	}
	for i := len(root.Attr) - 1; i >= 0; i-- {
		a := root.Attr[i]
		if a.Key == "schemaLocation" && a.Space != "" && xsdfix.LookupPrefix(root, a.Space) == instance.URI {
			root.RemoveAttr(a.FullKey())
		}
	}
	root.CreateAttr(prefix+":schemaLocation", ns.SchemaLocation)
	return out, nil
}
