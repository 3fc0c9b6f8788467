package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const loadQuery = `
SELECT
	c.table_schema, c.table_name, c.column_name, c.data_type,
	COALESCE(pk.is_key, false)
FROM information_schema.columns c
LEFT JOIN (
	SELECT kcu.table_schema, kcu.table_name, kcu.column_name, true AS is_key
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
	  ON kcu.constraint_name = tc.constraint_name
	 AND kcu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
) pk ON pk.table_schema = c.table_schema
    AND pk.table_name = c.table_name
    AND pk.column_name = c.column_name
WHERE c.table_schema = ANY($1)
ORDER BY c.table_schema, c.table_name, c.ordinal_position
`

// columnRow is one row of loadQuery.
type columnRow struct {
	Schema   string
	Table    string
	Column   string
	DataType string
	IsKey    bool
}

// LoadPostgres registers one object per table found in the given schemas.
// Objects are named after their table; fields after their column.
func (c *Catalog) LoadPostgres(ctx context.Context, pool *pgxpool.Pool, schemas ...string) error {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}
	rows, err := pool.Query(ctx, loadQuery, schemas)
	if err != nil {
		return fmt.Errorf("schema catalog load: %w", err)
	}
	defer rows.Close()

	var columns []columnRow
	for rows.Next() {
		var r columnRow
		if err := rows.Scan(&r.Schema, &r.Table, &r.Column, &r.DataType, &r.IsKey); err != nil {
			return fmt.Errorf("schema catalog scan: %w", err)
		}
		columns = append(columns, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema catalog rows: %w", err)
	}

	for _, obj := range assembleObjects(columns) {
		if err := c.Register(obj); err != nil {
			return err
		}
	}
	return nil
}

// assembleObjects groups ordered column rows into object definitions,
// preserving table order.
func assembleObjects(rows []columnRow) []*ObjectDef {
	var (
		objects []*ObjectDef
		current *ObjectDef
	)
	for _, r := range rows {
		if current == nil || *current.StorageTable != r.Table || *current.StorageSchema != r.Schema {
			current = &ObjectDef{
				APIName:       r.Table,
				StorageSchema: Ptr(r.Schema),
				StorageTable:  Ptr(r.Table),
			}
			objects = append(objects, current)
		}
		if r.IsKey && current.KeyField == "" {
			current.KeyField = r.Column
		}
		current.Fields = append(current.Fields, FieldDef{
			APIName:       r.Column,
			Type:          pgFieldType(r.DataType),
			StorageColumn: Ptr(r.Column),
		})
	}
	return objects
}

func pgFieldType(dataType string) FieldType {
	switch dataType {
	case "smallint", "integer", "bigint", "real", "double precision", "numeric", "decimal":
		return FieldNumber
	case "money":
		return FieldCurrency
	case "boolean":
		return FieldBoolean
	case "date":
		return FieldDate
	case "timestamp without time zone", "timestamp with time zone":
		return FieldDatetime
	case "uuid":
		return FieldUUID
	default:
		return FieldText
	}
}
