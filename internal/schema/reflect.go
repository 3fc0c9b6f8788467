package schema

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// RegisterStruct registers the struct type of v as an aggregate root stored in
// table. The object is named after the Go type. Fields are mapped using the
// `db` struct tag:
//
//	db:"name"      column name (default: snake_case of the field name)
//	db:"name,key"  primary key
//	db:"-"         ignored
//
// Nested structs that are already registered aggregate roots become LOOKUP
// fields (column defaults to <field>_id); any other nested struct is
// registered as a value object and flattened under the prefix <field>_.
func (c *Catalog) RegisterStruct(v any, schemaName, table string) (*ObjectDef, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, sqlerr.Config("cannot register %T: not a struct", v)
	}
	obj, err := c.structObject(t, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}
	if table != "" {
		obj.StorageTable = Ptr(table)
	}
	if schemaName != "" {
		obj.StorageSchema = Ptr(schemaName)
	}
	if err := c.Register(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (c *Catalog) structObject(t reflect.Type, visiting map[reflect.Type]bool) (*ObjectDef, error) {
	if visiting[t] {
		return nil, sqlerr.Config("type %q contains itself", t.Name())
	}
	visiting[t] = true
	defer delete(visiting, t)

	obj := &ObjectDef{APIName: t.Name()}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts := parseTag(sf)
		if name == "-" {
			obj.Fields = append(obj.Fields, FieldDef{APIName: sf.Name, IsIgnored: true})
			continue
		}
		if opts["key"] || (obj.KeyField == "" && (sf.Name == "ID" || sf.Name == "Id")) {
			obj.KeyField = sf.Name
		}

		ft := sf.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if ft.Kind() == reflect.Struct && ft != timeType {
			if target := c.Get(ft.Name()); target != nil && target.IsAggregateRoot() {
				col := name
				if col == "" {
					col = snakeCase(sf.Name) + "_id"
				}
				obj.Fields = append(obj.Fields, FieldDef{
					APIName:       sf.Name,
					Type:          FieldLookup,
					StorageColumn: Ptr(col),
					LookupObject:  target.APIName,
				})
				continue
			}

			nested, err := c.structObject(ft, visiting)
			if err != nil {
				return nil, err
			}
			if err := c.Register(nested); err != nil {
				return nil, err
			}
			prefix := name
			if prefix == "" {
				prefix = snakeCase(sf.Name)
			}
			obj.Fields = append(obj.Fields, FieldDef{
				APIName:      sf.Name,
				Type:         FieldObject,
				LookupObject: nested.APIName,
				ColumnPrefix: prefix + "_",
			})
			continue
		}

		col := name
		if col == "" {
			col = snakeCase(sf.Name)
		}
		obj.Fields = append(obj.Fields, FieldDef{
			APIName:       sf.Name,
			Type:          fieldTypeOf(ft),
			StorageColumn: Ptr(col),
		})
	}
	return obj, nil
}

func parseTag(sf reflect.StructField) (string, map[string]bool) {
	tag, ok := sf.Tag.Lookup("db")
	if !ok {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool, len(parts)-1)
	for _, p := range parts[1:] {
		opts[strings.TrimSpace(p)] = true
	}
	return strings.TrimSpace(parts[0]), opts
}

func fieldTypeOf(t reflect.Type) FieldType {
	switch {
	case t == timeType:
		return FieldDatetime
	case t == uuidType:
		return FieldUUID
	}
	switch t.Kind() {
	case reflect.String:
		return FieldText
	case reflect.Bool:
		return FieldBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return FieldNumber
	default:
		return FieldText
	}
}

// snakeCase converts Go field names to column names: DepartmentID -> department_id.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
