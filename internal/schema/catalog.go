package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Catalog maps objects and their property paths to physical tables and
// columns. Lookups take a read lock; registration is expected to happen before
// the catalog is shared with compilers.
type Catalog struct {
	mu      sync.RWMutex
	objects map[string]*ObjectDef
}

func NewCatalog() *Catalog {
	return &Catalog{
		objects: make(map[string]*ObjectDef),
	}
}

// Register adds or replaces an object definition.
func (c *Catalog) Register(obj *ObjectDef) error {
	if obj == nil || obj.APIName == "" {
		return sqlerr.Config("object definition has no name")
	}
	seen := make(map[string]bool, len(obj.Fields))
	for i := range obj.Fields {
		f := &obj.Fields[i]
		if seen[f.APIName] {
			return sqlerr.Config("duplicate field %q", f.APIName).With("type", obj.APIName)
		}
		seen[f.APIName] = true
		if f.IsIgnored {
			continue
		}
		switch f.Type {
		case FieldLookup, FieldObject:
			if f.LookupObject == "" {
				return sqlerr.Config("field %q of type %s has no target object", f.APIName, f.Type).
					With("type", obj.APIName)
			}
		}
		if f.Type != FieldObject && f.Column() == "" {
			return sqlerr.Config("field %q has no storage column", f.APIName).With("type", obj.APIName)
		}
	}
	obj.index()

	c.mu.Lock()
	c.objects[obj.APIName] = obj
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Get(apiName string) *ObjectDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.objects[apiName]
}

// ObjectCount returns the number of registered objects.
func (c *Catalog) ObjectCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// IsAggregateRoot reports whether object is registered with its own table.
func (c *Catalog) IsAggregateRoot(object string) bool {
	obj := c.Get(object)
	return obj != nil && obj.IsAggregateRoot()
}

// Table returns the unquoted schema and table of an aggregate root.
func (c *Catalog) Table(object string) (string, string, error) {
	obj := c.Get(object)
	if obj == nil {
		return "", "", sqlerr.Config("type %q is not registered", object)
	}
	if !obj.IsAggregateRoot() {
		return "", "", sqlerr.Config("type %q is not an aggregate root", object)
	}
	s, t := obj.Table()
	return s, t, nil
}

// Resolution is the outcome of resolving a property path.
type Resolution struct {
	// Column is set when the path ends on a leaf field.
	Column string
	// Columns lists every column of a composite (OBJECT) path in
	// declaration order.
	Columns []string
	Field   *FieldDef
}

// IsComposite reports whether the path ended on a flattened value object.
func (r Resolution) IsComposite() bool { return r.Column == "" }

// Resolve maps a dotted property path on object to its physical column.
// Paths ending on a value object are rejected; use ResolvePath for those.
func (c *Catalog) Resolve(object, path string) (string, error) {
	res, err := c.ResolvePath(object, path)
	if err != nil {
		return "", err
	}
	if res.IsComposite() {
		return "", sqlerr.Config("property path resolves to %d columns, expected one", len(res.Columns)).
			With("path", path).With("type", object)
	}
	return res.Column, nil
}

// ResolvePath maps a dotted property path on object to a leaf column or to
// the expanded column list of a value object.
func (c *Catalog) ResolvePath(object, path string) (Resolution, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	notFound := func(reason string) error {
		return sqlerr.Config("property path %s", reason).With("path", path).With("type", object)
	}

	obj := c.objects[object]
	if obj == nil {
		return Resolution{}, notFound("is on an unregistered type")
	}
	if path == "" {
		return Resolution{}, notFound("is empty")
	}

	segments := strings.Split(path, ".")
	prefix := ""
	for i, seg := range segments {
		f, ok := obj.FieldsByAPIName[seg]
		if !ok {
			return Resolution{}, notFound("is not registered")
		}
		if f.IsIgnored {
			return Resolution{}, notFound("is ignored")
		}
		last := i == len(segments)-1

		switch f.Type {
		case FieldObject:
			target := c.objects[f.LookupObject]
			if target == nil {
				return Resolution{}, notFound(fmt.Sprintf("references unregistered type %q", f.LookupObject))
			}
			prefix += f.ColumnPrefix
			if last {
				cols, err := c.columnsLocked(target, prefix, map[string]bool{object: true})
				if err != nil {
					return Resolution{}, err
				}
				return Resolution{Columns: cols, Field: f}, nil
			}
			obj = target

		case FieldLookup:
			if last {
				return Resolution{Column: prefix + f.Column(), Field: f}, nil
			}
			target := c.objects[f.LookupObject]
			if target == nil {
				return Resolution{}, notFound(fmt.Sprintf("references unregistered type %q", f.LookupObject))
			}
			if i != len(segments)-2 || segments[i+1] != target.KeyField {
				return Resolution{}, notFound(fmt.Sprintf("traverses reference %q beyond its key", seg))
			}
			return Resolution{Column: prefix + f.Column(), Field: target.FieldsByAPIName[target.KeyField]}, nil

		default:
			if !last {
				return Resolution{}, notFound(fmt.Sprintf("accesses member of scalar field %q", seg))
			}
			return Resolution{Column: prefix + f.Column(), Field: f}, nil
		}
	}
	return Resolution{}, notFound("is not registered")
}

// Columns returns every physical column of object in declaration order,
// with value objects expanded and ignored fields skipped.
func (c *Catalog) Columns(object string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj := c.objects[object]
	if obj == nil {
		return nil, sqlerr.Config("type %q is not registered", object)
	}
	return c.columnsLocked(obj, "", map[string]bool{})
}

func (c *Catalog) columnsLocked(obj *ObjectDef, prefix string, visiting map[string]bool) ([]string, error) {
	if visiting[obj.APIName] {
		return nil, sqlerr.Config("type %q contains itself", obj.APIName)
	}
	visiting[obj.APIName] = true
	defer delete(visiting, obj.APIName)

	var cols []string
	for i := range obj.Fields {
		f := &obj.Fields[i]
		if f.IsIgnored {
			continue
		}
		if f.Type != FieldObject {
			cols = append(cols, prefix+f.Column())
			continue
		}
		target := c.objects[f.LookupObject]
		if target == nil {
			return nil, sqlerr.Config("type %q is not registered", f.LookupObject).With("type", obj.APIName)
		}
		nested, err := c.columnsLocked(target, prefix+f.ColumnPrefix, visiting)
		if err != nil {
			return nil, err
		}
		cols = append(cols, nested...)
	}
	return cols, nil
}
