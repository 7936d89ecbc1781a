package bsync

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agentflare-ai/go-xsdfix"
)

// UDF is a user defined field added by a fix routine.
type UDF struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Conversion rewrites AnnualSavingsByFuel entries for Resource reported in
// From units into To units, multiplying the native value by Factor.
type Conversion struct {
	Resource string  `yaml:"resource" json:"resource"`
	From     string  `yaml:"from" json:"from"`
	To       string  `yaml:"to" json:"to"`
	Factor   float64 `yaml:"factor" json:"factor"`
}

// PremisesIdentifier is a Site or Building identifier entry.
type PremisesIdentifier struct {
	Label      string `yaml:"label" json:"label"`
	CustomName string `yaml:"custom_name,omitempty" json:"custom_name,omitempty"`
	Value      string `yaml:"value" json:"value"`
}

// Options tunes the catalogue routines.
type Options struct {
	ReportUDFs      []UDF                `yaml:"report_udfs" json:"report_udfs"`
	MeasureUDFs     []UDF                `yaml:"measure_udfs" json:"measure_udfs"`
	ScenarioUDFs    []UDF                `yaml:"scenario_udfs" json:"scenario_udfs"`
	Conversions     []Conversion         `yaml:"conversions" json:"conversions"`
	SiteIdentifiers []PremisesIdentifier `yaml:"site_identifiers" json:"site_identifiers"`
	// Skipped lists element tags with validation errors that have no fixer
	// and are handled elsewhere.
	Skipped    []string          `yaml:"skipped" json:"skipped"`
	Namespaces xsdfix.Namespaces `yaml:"namespaces" json:"namespaces"`
}

// DefaultOptions returns the settings used for the audit template tool and
// the BuildingSync 2.0 migration.
func DefaultOptions() Options {
	return Options{
		ReportUDFs: []UDF{
			{"Audit Date For Level 1: Walk-through Is Not Applicable", "false"},
			{"Audit Date For Level 2: Energy Survey and Analysis Is Not Applicable", "false"},
			{"Audit Date For Level 3: Detailed Survey and Analysis Is Not Applicable", "false"},
			{"Audit Filing Status", "Initial Filing"},
			{"Audit Filing Status Is Not Applicable", "false"},
			{"Audit Notes For Not Applicable", ""},
			{"Audit Notes Is Not Applicable", "false"},
			{"Audit Team Notes Is Not Applicable", "false"},
			{"Audit Template Report Type", "BRICR Phase 0/1"},
			{"Early Compliance", "false"},
			{"Early Compliance Is Not Applicable", "false"},
			{"Required Audit Year Is Not Applicable", "false"},
		},
		MeasureUDFs:  []UDF{{"Rebate Available", "false"}},
		ScenarioUDFs: []UDF{{"Recommended Resource Savings Category", "Potential Capital Recommendations"}},
		Conversions: []Conversion{
			{Resource: "Electricity", From: "kBtu", To: "kWh", Factor: 3.412},
			{Resource: "Natural gas", From: "kBtu", To: "therms", Factor: 0.01},
		},
		SiteIdentifiers: []PremisesIdentifier{
			{Label: "Custom", CustomName: "Borough", Value: "18749"},
		},
		Skipped:    []string{"Address", "Audits", "ResourceUses"},
		Namespaces: Namespaces,
	}
}

// Routine edits one document. It returns the document to continue with,
// which is a new tree only when the routine had to rebuild it.
type Routine func(doc *xsdfix.Document) (*xsdfix.Document, error)

// Fix is a named routine.
type Fix struct {
	Name    string
	Routine Routine
}

// Apply runs the routine and names the fix in any error.
func (f Fix) Apply(doc *xsdfix.Document) (*xsdfix.Document, error) {
	out, err := f.Routine(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "fix %s", f.Name)
	}
	return out, nil
}

func inPlace(fn func(*xsdfix.Document) error) Routine {
	return func(doc *xsdfix.Document) (*xsdfix.Document, error) {
		if err := fn(doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// Catalogue binds the fix routines to a schema engine.
type Catalogue struct {
	Engine  *xsdfix.Engine
	Options Options
	// NewID generates the ID for an element named local that lacks one.
	NewID func(local string) string

	fixers map[string]Routine

	idOnce  sync.Once
	idPaths []*xsdfix.Query
	idNames []string
	idErr   error
}

// New creates a catalogue over engine.
func New(engine *xsdfix.Engine, opts Options) *Catalogue {
	c := &Catalogue{
		Engine:  engine,
		Options: opts,
		NewID: func(local string) string {
			return fmt.Sprintf("%s-%s", local, uuid.NewString())
		},
	}
	c.fixers = map[string]Routine{
		"starttimestamp":            inPlace(c.FixTimestamps),
		"calculationmethod":         inPlace(c.FixCalculationMethod),
		"subsections":               inPlace(c.FixSubsections),
		"report":                    inPlace(c.FixReport),
		"primarylightingsystemtype": inPlace(c.FixPrimaryLightingSystemType),
		"occupancyclassification":   inPlace(c.FixOccupancyClassification),
	}
	return c
}

// ATTFix prepares a document for the audit template tool.
func (c *Catalogue) ATTFix() Fix { return Fix{Name: "att", Routine: inPlace(c.ATT)} }

// RequiredIDsFix fills in missing ID attributes.
func (c *Catalogue) RequiredIDsFix() Fix {
	return Fix{Name: "required-ids", Routine: inPlace(c.AddRequiredIDs)}
}

// SchemaLocationFix repairs namespaces when needed and sets the schema
// location. It is the last fix applied to every migrated document.
func (c *Catalogue) SchemaLocationFix() Fix {
	return Fix{Name: "schemalocation", Routine: c.FixSchemaLocation}
}

// SortFix sorts and deduplicates the children of every element matched by
// expr. The primary namespace prefix is bound in expr.
func (c *Catalogue) SortFix(expr string) (Fix, error) {
	ns := map[string]string{Prefix: URI}
	if p := c.Options.Namespaces.Primary; p.Prefix != "" && p.URI != "" {
		ns[p.Prefix] = p.URI
	}
	q, err := xsdfix.CompileQuery(expr, ns)
	if err != nil {
		return Fix{}, err
	}
	return Fix{Name: "sort", Routine: inPlace(func(doc *xsdfix.Document) error {
		matched := q.Select(doc.Root())
		if len(matched) == 0 {
			return &xsdfix.MissingNodeError{Expr: expr}
		}
		for _, e := range matched {
			if err := c.Engine.SortAndDedupe(e); err != nil {
				return err
			}
		}
		return nil
	})}, nil
}

// Resolve returns the fixer for the element tag reported by validation.
// skip is true for tags without a fixer that are deliberately left alone;
// any other unknown tag is an error.
func (c *Catalogue) Resolve(tag string) (fix Fix, skip bool, err error) {
	key := strings.ToLower(tag)
	if r, ok := c.fixers[key]; ok {
		return Fix{Name: key, Routine: r}, false, nil
	}
	if slices.Contains(c.Options.Skipped, tag) {
		return Fix{}, true, nil
	}
	return Fix{}, false, errors.Errorf("failed to find fixer for %s, which is not supposed to be skipped", tag)
}

// Tags lists the element tags that have fixers.
func (c *Catalogue) Tags() []string {
	tags := make([]string, 0, len(c.fixers))
	for t := range c.fixers {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// addUDFs appends fields to e's UserDefinedFields, creating the container
// in schema order when e has none.
func (c *Catalogue) addUDFs(e *etree.Element, udfs []UDF) error {
	if len(udfs) == 0 {
		return nil
	}
	container, err := c.Engine.GetOrCreate(e, Name("UserDefinedFields"))
	if err != nil {
		return err
	}
	for _, f := range udfs {
		udf := xsdfix.NewElement(container, Name("UserDefinedField"))
		xsdfix.SubElement(udf, "FieldName", f.Name)
		xsdfix.SubElement(udf, "FieldValue", f.Value)
		container.AddChild(udf)
	}
	return c.Engine.Sort(container)
}
