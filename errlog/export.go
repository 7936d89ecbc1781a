package errlog

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// tree returns the summary as nested ordered maps:
// category -> tag -> details -> {files: [...]}.
func (s *Summary) tree() yaml.MapSlice {
	var out yaml.MapSlice
	for _, c := range s.categories {
		var tags yaml.MapSlice
		for _, el := range c.Elements {
			var details yaml.MapSlice
			for _, d := range el.Details {
				details = append(details, yaml.MapItem{
					Key:   d.Text,
					Value: yaml.MapSlice{{Key: "files", Value: d.Files}},
				})
			}
			tags = append(tags, yaml.MapItem{Key: el.Tag, Value: details})
		}
		out = append(out, yaml.MapItem{Key: c.Name, Value: tags})
	}
	return out
}

// WriteYAML writes the summary as YAML.
func (s *Summary) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(s.tree())
	if err != nil {
		return errors.Wrap(err, "marshal summary")
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}

// MarshalJSON encodes the summary as nested objects in first-seen order.
func (s *Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, s.tree()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	m, ok := v.(yaml.MapSlice)
	if !ok {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	}
	buf.WriteByte('{')
	for i, item := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeJSON(buf, item.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// WriteJSON writes the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "marshal summary")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return errors.WithStack(err)
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return errors.WithStack(err)
}
