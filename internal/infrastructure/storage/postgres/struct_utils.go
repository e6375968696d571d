package postgres

import (
	"reflect"
	"sync"
)

// column is one db-tagged field of a row struct.
type column struct {
	name  string
	index []int
}

// columnCache maps reflect.Type to []column.
var columnCache sync.Map

// columnsOf lists the db-tagged fields of t in declaration order, including
// fields promoted from embedded structs. Untagged and "-" fields are skipped.
func columnsOf(t reflect.Type) []column {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}

	var cols []column
	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous || !f.IsExported() {
				continue
			}
			name := f.Tag.Get("db")
			if name == "" || name == "-" {
				continue
			}
			cols = append(cols, column{name: name, index: f.Index})
		}
	}

	columnCache.Store(t, cols)
	return cols
}

// ExtractDBColumns returns the column names of row type T, e.g. the select
// list of ledger.Session.
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeFor[T]())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap returns column -> value for a row struct, ready for
// squirrel's SetMap. Nil for anything but a struct or pointer to one.
func StructToMap(v any) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}

	cols := columnsOf(rv.Type())
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		out[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return out
}
