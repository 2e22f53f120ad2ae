package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errNotObject = errors.New("expected a JSON object")

// UnmarshalJSON decodes the map form, keeping key order. Tables must carry a
// "columns" object. Repeated keys are rejected. A null document yields an
// empty schema.
func (s *Schema) UnmarshalJSON(data []byte) error {
	s.Tables = nil
	if isNull(data) {
		return nil
	}
	return walkObject(data, func(name string, raw json.RawMessage) error {
		t := Table{Name: name}
		if err := t.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
		s.Tables = append(s.Tables, t)
		return nil
	})
}

// MarshalJSON writes tables and columns in stored order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range s.Tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, t.Name); err != nil {
			return nil, err
		}
		b, err := t.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes {"columns": {...}}. Other keys are ignored. The table
// name is not part of the value and is left untouched.
func (t *Table) UnmarshalJSON(data []byte) error {
	t.Columns = nil
	found := false
	err := walkObject(data, func(key string, raw json.RawMessage) error {
		if key != "columns" {
			return nil
		}
		found = true
		return walkObject(raw, func(name string, raw json.RawMessage) error {
			c := Column{Name: name}
			if err := c.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("column %q: %w", name, err)
			}
			t.Columns = append(t.Columns, c)
			return nil
		})
	})
	if err != nil {
		return err
	}
	if !found {
		return errors.New(`missing "columns"`)
	}
	return nil
}

// MarshalJSON writes {"columns": {...}}.
func (t Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"columns":{`)
	for i, c := range t.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, c.Name); err != nil {
			return nil, err
		}
		b, err := c.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

type columnJSON struct {
	Type       string          `json:"type"`
	PrimaryKey bool            `json:"primaryKey"`
	ForeignKey *ForeignKey     `json:"foreignKey,omitempty"`
	Nullable   *bool           `json:"nullable,omitempty"`
	Unique     *bool           `json:"unique,omitempty"`
	Default    json.RawMessage `json:"default,omitempty"`
}

// UnmarshalJSON decodes column attributes. A non-string default such as 0 or
// true is kept as its literal JSON text.
func (c *Column) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return errNotObject
	}
	var v columnJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.Type = v.Type
	c.PrimaryKey = v.PrimaryKey
	c.ForeignKey = v.ForeignKey
	c.Nullable = v.Nullable
	c.Unique = v.Unique
	c.Default = nil
	if len(v.Default) > 0 && !isNull(v.Default) {
		var str string
		if err := json.Unmarshal(v.Default, &str); err == nil {
			c.Default = &str
		} else {
			lit := string(bytes.TrimSpace(v.Default))
			c.Default = &lit
		}
	}
	return nil
}

// MarshalJSON writes column attributes.
func (c Column) MarshalJSON() ([]byte, error) {
	v := columnJSON{
		Type:       c.Type,
		PrimaryKey: c.PrimaryKey,
		ForeignKey: c.ForeignKey,
		Nullable:   c.Nullable,
		Unique:     c.Unique,
	}
	if c.Default != nil {
		b, err := json.Marshal(*c.Default)
		if err != nil {
			return nil, err
		}
		v.Default = b
	}
	return json.Marshal(v)
}

// walkObject calls fn for every member of a JSON object in document order.
func walkObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errNotObject
	}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%q: %w", key, ErrDuplicateName)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
