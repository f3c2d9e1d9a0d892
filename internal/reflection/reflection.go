package reflection

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	"github.com/burugo/tombstone/internal/schema"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// StructValue returns the addressable struct behind a non-nil pointer.
func StructValue(model interface{}) (reflect.Value, error) {
	val := reflect.ValueOf(model)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return reflect.Value{}, fmt.Errorf("model must be a non-nil pointer to struct, got %T", model)
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("model must be a non-nil pointer to struct, got %T", model)
	}
	return val, nil
}

// ColumnValue returns the value stored in column, dereferencing pointers so
// that the result is safe to keep as a snapshot. A nil pointer yields nil.
func ColumnValue(val reflect.Value, info *schema.ModelInfo, column string) (interface{}, bool) {
	idx, ok := info.FieldIndex(column)
	if !ok {
		return nil, false
	}
	field := val.FieldByIndex(idx)
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, true
		}
		return field.Elem().Interface(), true
	}
	return field.Interface(), true
}

// Attributes snapshots every column of val, keyed by column name.
func Attributes(val reflect.Value, info *schema.ModelInfo) map[string]interface{} {
	attrs := make(map[string]interface{}, len(info.Columns))
	for _, col := range info.Columns {
		v, _ := ColumnValue(val, info, col)
		attrs[col] = v
	}
	return attrs
}

// WriteValues returns the raw field values for columns, as handed to the driver.
func WriteValues(val reflect.Value, info *schema.ModelInfo, columns []string) ([]interface{}, error) {
	out := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		idx, ok := info.FieldIndex(col)
		if !ok {
			return nil, fmt.Errorf("column %s not mapped on %s", col, info.Type.Name())
		}
		out = append(out, val.FieldByIndex(idx).Interface())
	}
	return out, nil
}

// SetAttribute assigns v to the field backing column. nil clears the field.
// Values are assigned directly, through a pointer wrapper, by conversion, or
// through the field's sql.Scanner, in that order.
func SetAttribute(val reflect.Value, info *schema.ModelInfo, column string, v interface{}) error {
	idx, ok := info.FieldIndex(column)
	if !ok {
		return fmt.Errorf("column %s not mapped on %s", column, info.Type.Name())
	}
	field := val.FieldByIndex(idx)
	if !field.CanSet() {
		return fmt.Errorf("field for column %s on %s is not settable", column, info.Type.Name())
	}
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	rv := reflect.ValueOf(v)
	ft := field.Type()
	switch {
	case rv.Type().AssignableTo(ft):
		field.Set(rv)
		return nil
	case ft.Kind() == reflect.Ptr && rv.Type().AssignableTo(ft.Elem()):
		p := reflect.New(ft.Elem())
		p.Elem().Set(rv)
		field.Set(p)
		return nil
	case ft.Kind() == reflect.Ptr && rv.Type().ConvertibleTo(ft.Elem()) && convertible(rv.Type(), ft.Elem()):
		p := reflect.New(ft.Elem())
		p.Elem().Set(rv.Convert(ft.Elem()))
		field.Set(p)
		return nil
	case rv.Type().ConvertibleTo(ft) && convertible(rv.Type(), ft):
		field.Set(rv.Convert(ft))
		return nil
	}

	if reflect.PointerTo(ft).Implements(scannerType) {
		if valuer, ok := v.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil {
				return err
			}
			v = dv
		}
		return field.Addr().Interface().(sql.Scanner).Scan(v)
	}
	return fmt.Errorf("cannot assign %T to field %s (%s) on %s", v, info.ColumnToFieldMap[column], ft, info.Type.Name())
}

// convertible excludes numeric to string conversions, which reflect allows
// but which produce runes rather than digits.
func convertible(from, to reflect.Type) bool {
	if to.Kind() == reflect.String && from.Kind() != reflect.String {
		return false
	}
	return true
}

// SetTimestamp sets a time.Time column if the model maps it.
func SetTimestamp(val reflect.Value, info *schema.ModelInfo, column string, t time.Time) {
	idx, ok := info.FieldIndex(column)
	if !ok {
		return
	}
	field := val.FieldByIndex(idx)
	if field.CanSet() && field.Type() == timeType {
		field.Set(reflect.ValueOf(t))
	}
}

// Int64 reads an integer key out of v. Pointers and sql.NullInt64 are
// followed; ok is false for nil pointers and non-integer values.
func Int64(v reflect.Value) (int64, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	}
	if n, ok := v.Interface().(sql.NullInt64); ok {
		return n.Int64, n.Valid
	}
	return 0, false
}

// ColumnInt64 reads an integer key from column.
func ColumnInt64(val reflect.Value, info *schema.ModelInfo, column string) (int64, bool) {
	idx, ok := info.FieldIndex(column)
	if !ok {
		return 0, false
	}
	return Int64(val.FieldByIndex(idx))
}
