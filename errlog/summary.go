package errlog

import (
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
)

// Summary groups entries by category, then element tag, then details.
// Every level keeps first-seen order.
type Summary struct {
	categories []*Category
	byName     map[string]*Category
}

// Category holds the errors of one short error category.
type Category struct {
	Name     string
	Elements []*ElementErrors
	byTag    map[string]*ElementErrors
}

// ElementErrors holds the errors reported for one element tag.
type ElementErrors struct {
	Tag     string
	Details []*Detail
	byText  map[string]*Detail
}

// Detail is one distinct message and the files that reported it.
type Detail struct {
	Text  string
	Files []string
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{byName: make(map[string]*Category)}
}

// Add records e.
func (s *Summary) Add(e Entry) {
	cat, ok := s.byName[e.Category]
	if !ok {
		cat = &Category{Name: e.Category, byTag: make(map[string]*ElementErrors)}
		s.byName[e.Category] = cat
		s.categories = append(s.categories, cat)
	}
	el, ok := cat.byTag[e.Tag]
	if !ok {
		el = &ElementErrors{Tag: e.Tag, byText: make(map[string]*Detail)}
		cat.byTag[e.Tag] = el
		cat.Elements = append(cat.Elements, el)
	}
	d, ok := el.byText[e.Details]
	if !ok {
		d = &Detail{Text: e.Details}
		el.byText[e.Details] = d
		el.Details = append(el.Details, d)
	}
	d.Files = append(d.Files, e.File)
}

// Categories returns the categories in first-seen order.
func (s *Summary) Categories() []*Category { return s.categories }

// Category returns the named category or nil.
func (s *Summary) Category(name string) *Category { return s.byName[name] }

// Element returns the errors for tag or nil.
func (c *Category) Element(tag string) *ElementErrors {
	if c == nil {
		return nil
	}
	return c.byTag[tag]
}

// Count is the number of entries in the category.
func (c *Category) Count() int {
	n := 0
	for _, el := range c.Elements {
		n += el.Count()
	}
	return n
}

// Count is the number of entries for the element.
func (el *ElementErrors) Count() int {
	n := 0
	for _, d := range el.Details {
		n += len(d.Files)
	}
	return n
}

// Documents returns the distinct document names that reported errors for
// the element, in first-seen order.
func (el *ElementErrors) Documents() []string {
	var out []string
	for _, d := range el.Details {
		for _, f := range d.Files {
			name := DocumentName(f)
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// Files returns the documents that reported errors for tag under
// category, or nil when there are none.
func (s *Summary) Files(category, tag string) []string {
	el := s.Category(category).Element(tag)
	if el == nil {
		return nil
	}
	return el.Documents()
}

// Summarize parses every *.xml report in dir. When subset is not nil only
// reports whose base name is listed are read.
func Summarize(dir string, subset []string) (*Summary, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	slices.Sort(files)

	s := NewSummary()
	for _, f := range files {
		if subset != nil && !slices.Contains(subset, filepath.Base(f)) {
			continue
		}
		entries, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			s.Add(e)
		}
	}
	return s, nil
}
