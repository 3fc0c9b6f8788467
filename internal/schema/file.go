package schema

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// catalogFile is the on-disk catalog format:
//
//	objects:
//	  - name: Person
//	    schema: hr
//	    table: people
//	    key: Id
//	    fields:
//	      - {name: Id, column: id, type: NUMBER}
//	      - {name: Department, type: LOOKUP, object: Department, column: department_id}
//	      - {name: Address, type: OBJECT, object: Address, prefix: address_}
//	      - {name: Notes, ignored: true}
type catalogFile struct {
	Objects []objectSpec `json:"objects"`
}

type objectSpec struct {
	Name   string      `json:"name"`
	Schema string      `json:"schema,omitempty"`
	Table  string      `json:"table,omitempty"`
	Key    string      `json:"key,omitempty"`
	Fields []fieldSpec `json:"fields"`
}

type fieldSpec struct {
	Name    string `json:"name"`
	Column  string `json:"column,omitempty"`
	Type    string `json:"type,omitempty"`
	Object  string `json:"object,omitempty"`
	Prefix  string `json:"prefix,omitempty"`
	Ignored bool   `json:"ignored,omitempty"`
}

// LoadFile registers every object declared in a YAML or JSON catalog file.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	return c.LoadBytes(data)
}

// LoadBytes registers every object declared in YAML or JSON data.
func (c *Catalog) LoadBytes(data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}
	for _, spec := range file.Objects {
		if err := c.Register(spec.toObject()); err != nil {
			return fmt.Errorf("catalog object %q: %w", spec.Name, err)
		}
	}
	return nil
}

func (s objectSpec) toObject() *ObjectDef {
	obj := &ObjectDef{APIName: s.Name, KeyField: s.Key}
	if s.Table != "" {
		obj.StorageTable = Ptr(s.Table)
	}
	if s.Schema != "" {
		obj.StorageSchema = Ptr(s.Schema)
	}
	for _, f := range s.Fields {
		fd := FieldDef{
			APIName:      f.Name,
			Type:         FieldType(f.Type),
			IsIgnored:    f.Ignored,
			LookupObject: f.Object,
			ColumnPrefix: f.Prefix,
		}
		if fd.Type == "" {
			fd.Type = FieldText
		}
		if f.Column != "" {
			fd.StorageColumn = Ptr(f.Column)
		} else if fd.Type != FieldObject && !f.Ignored {
			fd.StorageColumn = Ptr(snakeCase(f.Name))
		}
		obj.Fields = append(obj.Fields, fd)
	}
	return obj
}
