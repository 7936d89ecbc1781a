package errlog

import (
	"fmt"
	"regexp"
	"strings"
)

// Diagnostic is a rustc-style view of one grouped error.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Code     string   `json:"code" yaml:"code"`
	Message  string   `json:"message" yaml:"message"`
	Category string   `json:"category" yaml:"category"`
	Tag      string   `json:"tag" yaml:"tag"`
	Files    []string `json:"files" yaml:"files"`
	Hints    []string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Severity represents the severity level of a diagnostic
type Severity string

// Warning categories (parser and validity warnings) map to SeverityWarning,
// everything else to SeverityError.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// codes maps message fragments from the validator to stable codes.
var codes = []struct {
	fragment string
	code     string
}{
	{"is not allowed", "E200"},
	{"This element is not expected", "E201"},
	{"Missing child element", "E202"},
	{"is required but missing", "E204"},
	{"No match found for key-sequence", "E205"},
	{"Duplicate key-sequence", "E206"},
	{"No matching global declaration", "E207"},
	{"is not a valid value", "E208"},
	{"is not an element of the set", "E209"},
	{"is not accepted by the pattern", "E210"},
}

var (
	expectedRE  = regexp.MustCompile(`Expected is(?: one of)? \( (.+?) \)`)
	namespaceRE = regexp.MustCompile(`\{[^}]*\}`)
)

// Diagnostics converts the summary into one diagnostic per distinct
// message, in summary order.
func Diagnostics(s *Summary) []Diagnostic {
	var out []Diagnostic
	for _, cat := range s.Categories() {
		for _, el := range cat.Elements {
			for _, d := range el.Details {
				out = append(out, Diagnostic{
					Severity: severity(cat.Name),
					Code:     code(d.Text),
					Message:  d.Text,
					Category: strings.TrimSpace(cat.Name),
					Tag:      el.Tag,
					Files:    d.Files,
					Hints:    hints(d.Text),
				})
			}
		}
	}
	return out
}

func severity(category string) Severity {
	if strings.Contains(strings.ToLower(category), "warning") {
		return SeverityWarning
	}
	return SeverityError
}

func code(details string) string {
	for _, c := range codes {
		if strings.Contains(details, c.fragment) {
			return c.code
		}
	}
	return "E299"
}

func hints(details string) []string {
	m := expectedRE.FindStringSubmatch(details)
	if m == nil {
		return nil
	}
	expected := namespaceRE.ReplaceAllString(m[1], "")
	return []string{fmt.Sprintf("Expected: %s", expected)}
}
