package frag

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Literal renders v as a standard SQL literal. It is used when parameters
// are inlined. NaN and infinities have no literal form.
func Literal(v any) (string, error) {
	return literal(v, false)
}

// literal renders v; with backslashes set, "\" is doubled inside strings
// for dialects that treat it as an escape character.
func literal(v any, backslashes bool) (string, error) {
	if isNil(v) {
		return "NULL", nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		return literal(rv.Elem().Interface(), backslashes)
	}
	quote := func(s string) string { return quoteString(s, backslashes) }
	switch x := v.(type) {
	case time.Time:
		return quote(x.Format("2006-01-02 15:04:05.999999999")), nil
	case uuid.UUID:
		return quote(x.String()), nil
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'", nil
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return "", sqlerr.Invalid("value cannot be rendered").With("type", fmt.Sprintf("%T", v)).Wrap(err)
		}
		if _, loop := inner.(driver.Valuer); !loop {
			return literal(inner, backslashes)
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return quote(rv.String()), nil
	case reflect.Bool:
		if rv.Bool() {
			return "TRUE", nil
		}
		return "FALSE", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", sqlerr.Invalid("value has no literal form").With("value", strconv.FormatFloat(f, 'g', -1, 64))
		}
		return strconv.FormatFloat(f, 'g', -1, rv.Type().Bits()), nil
	}

	if s, ok := v.(fmt.Stringer); ok {
		return quote(s.String()), nil
	}
	return "", sqlerr.Invalid("value has no literal form").With("type", fmt.Sprintf("%T", v))
}

func quoteString(s string, backslashes bool) string {
	if backslashes {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
