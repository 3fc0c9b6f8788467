package schema

type FieldType string

const (
	FieldText       FieldType = "TEXT"
	FieldNumber     FieldType = "NUMBER"
	FieldCurrency   FieldType = "CURRENCY"
	FieldPercentage FieldType = "PERCENTAGE"
	FieldDate       FieldType = "DATE"
	FieldDatetime   FieldType = "DATETIME"
	FieldBoolean    FieldType = "BOOLEAN"
	FieldUUID       FieldType = "UUID"
	// FieldLookup references another aggregate root through a foreign key
	// column stored on the owning table.
	FieldLookup FieldType = "LOOKUP"
	// FieldObject is a value object whose fields are flattened into the
	// owning table under ColumnPrefix.
	FieldObject FieldType = "OBJECT"
)

type FieldDef struct {
	APIName       string
	Type          FieldType
	IsIgnored     bool
	StorageColumn *string
	// LookupObject names the target object of LOOKUP and OBJECT fields.
	LookupObject string
	ColumnPrefix string
}

// IsNumeric returns true if the field holds numbers.
func (f *FieldDef) IsNumeric() bool {
	return f.Type == FieldNumber || f.Type == FieldCurrency || f.Type == FieldPercentage
}

// IsText returns true if the field holds strings.
func (f *FieldDef) IsText() bool {
	return f.Type == FieldText || f.Type == FieldUUID
}

// Column returns the storage column, or "" for fields without one.
func (f *FieldDef) Column() string {
	if f.StorageColumn == nil {
		return ""
	}
	return *f.StorageColumn
}

type ObjectDef struct {
	APIName       string
	StorageSchema *string
	StorageTable  *string
	// KeyField is the API name of the primary key field. LOOKUP paths may
	// only traverse into the key of the referenced object.
	KeyField        string
	Fields          []FieldDef
	FieldsByAPIName map[string]*FieldDef
}

// IsAggregateRoot reports whether the object is stored in its own table.
func (o *ObjectDef) IsAggregateRoot() bool {
	return o.StorageTable != nil && *o.StorageTable != ""
}

// Table returns the unquoted schema and table names.
func (o *ObjectDef) Table() (string, string) {
	var s, t string
	if o.StorageSchema != nil {
		s = *o.StorageSchema
	}
	if o.StorageTable != nil {
		t = *o.StorageTable
	}
	return s, t
}

// index rebuilds FieldsByAPIName from Fields.
func (o *ObjectDef) index() {
	o.FieldsByAPIName = make(map[string]*FieldDef, len(o.Fields))
	for i := range o.Fields {
		o.FieldsByAPIName[o.Fields[i].APIName] = &o.Fields[i]
	}
}

// Ptr is a helper for optional string fields.
func Ptr(s string) *string { return &s }
