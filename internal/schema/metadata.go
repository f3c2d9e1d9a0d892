package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// --- Model Metadata Cache ---

// ComparableFieldInfo holds pre-computed metadata for a single column-backed field.
type ComparableFieldInfo struct {
	GoName       string       // Go field name
	DBColumn     string       // Database column name
	Index        []int        // Index for fast field access via FieldByIndex
	Type         reflect.Type // Field type
	IsEmbedded   bool         // Whether this is from an embedded struct
	IgnoreInDiff bool         // diff:"-" excludes the field from change tracking
}

// ModelInfo holds pre-computed metadata about a model type.
type ModelInfo struct {
	Type             reflect.Type // Struct type (never a pointer)
	TableName        string
	PkName           string   // Database name of the primary key column
	Columns          []string // All column names, PK included, in declaration order
	Fields           []string // Go field names, same order as Columns
	FieldToColumnMap map[string]string
	ColumnToFieldMap map[string]string
	CompareFields    []ComparableFieldInfo
	Relations        map[string]*Relation // Keyed by Go field name
	Dependents       []string             // Relation names cascaded on soft delete
	SoftDelete       bool                 // Type participates in soft deletion
	columnIndex      map[string][]int
}

// softDeleter and dependentsDeclarer mirror the root package capabilities
// without importing it.
type softDeleter interface {
	SoftDeletes() bool
}

type dependentsDeclarer interface {
	Dependents() []string
}

// ModelCache stores *ModelInfo keyed by struct reflect.Type.
var ModelCache sync.Map

// GetCachedModelInfo retrieves or computes/caches metadata for a given model type.
// Pointer types are dereferenced.
func GetCachedModelInfo(modelType reflect.Type) (*ModelInfo, error) {
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a struct type, got %s", modelType.Kind())
	}

	if cached, ok := ModelCache.Load(modelType); ok {
		return cached.(*ModelInfo), nil
	}

	info := &ModelInfo{
		Type:             modelType,
		FieldToColumnMap: make(map[string]string),
		ColumnToFieldMap: make(map[string]string),
		Relations:        make(map[string]*Relation),
		columnIndex:      make(map[string][]int),
	}
	pkDbName := ""

	var processFields func(structType reflect.Type, parentIndex []int, isEmbedded bool) error
	processFields = func(structType reflect.Type, parentIndex []int, isEmbedded bool) error {
		for i := 0; i < structType.NumField(); i++ {
			field := structType.Field(i)
			index := make([]int, len(parentIndex), len(parentIndex)+1)
			copy(index, parentIndex)
			index = append(index, i)

			// Relationship fields are never columns.
			if thingTag := field.Tag.Get("thing"); thingTag != "" {
				rel, err := parseRelation(field, thingTag, index)
				if err != nil {
					return fmt.Errorf("model %s: %w", modelType.Name(), err)
				}
				info.Relations[field.Name] = rel
				continue
			}

			dbTag := field.Tag.Get("db")
			if field.Anonymous && field.Type.Kind() == reflect.Struct && dbTag == "" {
				if err := processFields(field.Type, index, true); err != nil {
					return err
				}
				continue
			}

			if dbTag == "-" || !field.IsExported() {
				continue
			}

			columnName, isPk := parseDBTag(dbTag)
			if columnName == "" {
				columnName = ToSnakeCase(field.Name)
			}
			if _, dup := info.ColumnToFieldMap[columnName]; dup {
				// Outer declarations win over embedded ones.
				if isEmbedded {
					continue
				}
				info.removeColumn(columnName)
			}

			info.Columns = append(info.Columns, columnName)
			info.Fields = append(info.Fields, field.Name)
			info.FieldToColumnMap[field.Name] = columnName
			info.ColumnToFieldMap[columnName] = field.Name
			info.columnIndex[columnName] = index
			info.CompareFields = append(info.CompareFields, ComparableFieldInfo{
				GoName:       field.Name,
				DBColumn:     columnName,
				Index:        index,
				Type:         field.Type,
				IsEmbedded:   isEmbedded,
				IgnoreInDiff: field.Tag.Get("diff") == "-",
			})
			if isPk && pkDbName == "" {
				pkDbName = columnName
			}
		}
		return nil
	}

	if err := processFields(modelType, nil, false); err != nil {
		return nil, err
	}

	if pkDbName == "" {
		if _, ok := info.ColumnToFieldMap["id"]; !ok {
			return nil, fmt.Errorf("primary key not found for type %s: tag a field with `db:\"<col>,pk\"` or declare an \"id\" column", modelType.Name())
		}
		pkDbName = "id"
	}
	info.PkName = pkDbName
	info.TableName = getTableNameFromType(modelType)

	instance := reflect.New(modelType).Interface()
	if sd, ok := instance.(softDeleter); ok {
		info.SoftDelete = sd.SoftDeletes()
	}
	if dd, ok := instance.(dependentsDeclarer); ok {
		for _, name := range dd.Dependents() {
			if _, ok := info.Relations[name]; !ok {
				return nil, fmt.Errorf("model %s declares dependent %q but has no relation field with that name", modelType.Name(), name)
			}
			info.Dependents = append(info.Dependents, name)
		}
	}

	actual, _ := ModelCache.LoadOrStore(modelType, info)
	return actual.(*ModelInfo), nil
}

// FieldIndex returns the struct field index path backing a column.
func (m *ModelInfo) FieldIndex(column string) ([]int, bool) {
	idx, ok := m.columnIndex[column]
	return idx, ok
}

// Qualified returns "<table>.<column>".
func (m *ModelInfo) Qualified(column string) string {
	return m.TableName + "." + column
}

// QualifiedColumns returns every column prefixed with the table name.
func (m *ModelInfo) QualifiedColumns() []string {
	cols := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		cols[i] = m.Qualified(c)
	}
	return cols
}

// HasColumn reports whether the model maps the column.
func (m *ModelInfo) HasColumn(column string) bool {
	_, ok := m.columnIndex[column]
	return ok
}

func (m *ModelInfo) removeColumn(column string) {
	for i, c := range m.Columns {
		if c != column {
			continue
		}
		m.Columns = append(m.Columns[:i], m.Columns[i+1:]...)
		delete(m.FieldToColumnMap, m.Fields[i])
		m.Fields = append(m.Fields[:i], m.Fields[i+1:]...)
		break
	}
	for i, f := range m.CompareFields {
		if f.DBColumn == column {
			m.CompareFields = append(m.CompareFields[:i], m.CompareFields[i+1:]...)
			break
		}
	}
	delete(m.ColumnToFieldMap, column)
	delete(m.columnIndex, column)
}

func parseDBTag(tag string) (column string, isPk bool) {
	parts := strings.Split(tag, ",")
	column = parts[0]
	for _, opt := range parts[1:] {
		if opt == "pk" || opt == "primarykey" {
			isPk = true
		}
	}
	return column, isPk
}

// getTableNameFromType prefers a non-empty TableName() and falls back to the
// snake_case plural of the struct name.
func getTableNameFromType(modelType reflect.Type) string {
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	modelValue := reflect.New(modelType)
	if tableNamer, ok := modelValue.Interface().(interface{ TableName() string }); ok {
		if name := tableNamer.TableName(); name != "" {
			return name
		}
	}
	return ToSnakeCase(modelType.Name()) + "s"
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// ToSnakeCase converts a string from CamelCase to snake_case.
func ToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
