// Package errlog reads schema validation reports (one xmllint-style line
// per error) and groups the errors by category, element and message so
// fixers can be dispatched per element.
package errlog

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// NotElement is the element tag recorded for errors not tied to an element.
	NotElement = "NOT_ELEMENT"
	// SchemaValidity is the category of schema validity errors, including
	// the trailing space the validator prints before the colon.
	SchemaValidity = "Schemas validity error "

	separator = ": "
)

// Entry is one reported error.
type Entry struct {
	File     string `json:"file" yaml:"file"` // as reported, usually path:line
	Tag      string `json:"tag" yaml:"tag"`   // e.g. "element StartTimeStamp", or NotElement
	Category string `json:"category" yaml:"category"`
	Element  string `json:"element,omitempty" yaml:"element,omitempty"`
	Details  string `json:"details" yaml:"details"`
}

// DocumentName strips the ":line" suffix and directories from a reported
// file name.
func DocumentName(reported string) string {
	name, _, _ := strings.Cut(reported, ":")
	return filepath.Base(name)
}

// ParseLine parses one report line. ok is false for lines that do not
// describe an error.
func ParseLine(line string) (entry Entry, ok bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, separator)
	switch len(fields) {
	case 0, 1:
		return Entry{}, false, nil
	case 4:
		return Entry{
			File:     fields[0],
			Tag:      NotElement,
			Category: fields[1],
			Details:  strings.TrimSpace(fields[2]),
		}, true, nil
	case 5:
		return Entry{
			File:     fields[0],
			Tag:      fields[1],
			Category: fields[2],
			Element:  fields[3],
			Details:  strings.TrimSpace(fields[4]),
		}, true, nil
	}
	return Entry{}, false, errors.Errorf("unexpected report line with %d fields: %q", len(fields), line)
}

// Parse reads every error entry from r.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		entry, ok, err := ParseLine(sc.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, sc.Err()
}

// ParseFile reads every error entry from the report at path.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return entries, nil
}

// ElementTag returns the element name from a tag like "element Foo".
func ElementTag(tag string) (string, error) {
	fields := strings.Split(tag, " ")
	if len(fields) < 2 || fields[1] == "" {
		return "", errors.Errorf("no element name in %q", tag)
	}
	return fields[1], nil
}
