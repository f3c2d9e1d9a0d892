package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// TypeMapping maps Go types to column types per dialect.
var TypeMapping = map[string]map[string]string{
	"mysql": {
		"int":       "INT",
		"int8":      "TINYINT",
		"int16":     "SMALLINT",
		"int32":     "INT",
		"int64":     "BIGINT",
		"uint":      "INT UNSIGNED",
		"uint8":     "TINYINT UNSIGNED",
		"uint16":    "SMALLINT UNSIGNED",
		"uint32":    "INT UNSIGNED",
		"uint64":    "BIGINT UNSIGNED",
		"float32":   "FLOAT",
		"float64":   "DOUBLE",
		"string":    "VARCHAR(255)",
		"bool":      "BOOLEAN",
		"time.Time": "DATETIME(6)",
		"[]uint8":   "BLOB",
	},
	"postgres": {
		"int":       "INTEGER",
		"int8":      "SMALLINT",
		"int16":     "SMALLINT",
		"int32":     "INTEGER",
		"int64":     "BIGINT",
		"uint":      "BIGINT",
		"uint8":     "SMALLINT",
		"uint16":    "INTEGER",
		"uint32":    "BIGINT",
		"uint64":    "NUMERIC",
		"float32":   "REAL",
		"float64":   "DOUBLE PRECISION",
		"string":    "VARCHAR(255)",
		"bool":      "BOOLEAN",
		"time.Time": "TIMESTAMPTZ",
		"[]uint8":   "BYTEA",
	},
	"sqlite": {
		"int":       "INTEGER",
		"int8":      "INTEGER",
		"int16":     "INTEGER",
		"int32":     "INTEGER",
		"int64":     "INTEGER",
		"uint":      "INTEGER",
		"uint8":     "INTEGER",
		"uint16":    "INTEGER",
		"uint32":    "INTEGER",
		"uint64":    "INTEGER",
		"float32":   "REAL",
		"float64":   "REAL",
		"string":    "TEXT",
		"bool":      "BOOLEAN",
		"time.Time": "DATETIME",
		"[]uint8":   "BLOB",
	},
}

// TableOptions names the soft-delete columns of a table.
type TableOptions struct {
	Marker   string // indexed and nullable when mapped
	Sentinel string // nullable when mapped
}

// GenerateCreateTableSQL returns the CREATE TABLE statement for info, then
// a CREATE INDEX statement for the marker column when the model soft deletes.
// MySQL declares the index inline.
func GenerateCreateTableSQL(info *ModelInfo, dialect string, opts TableOptions) ([]string, error) {
	typeMap, ok := TypeMapping[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	indexMarker := info.SoftDelete && opts.Marker != "" && info.HasColumn(opts.Marker)
	indexName := fmt.Sprintf("idx_%s_%s", info.TableName, opts.Marker)

	defs := make([]string, 0, len(info.CompareFields)+1)
	for _, f := range info.CompareFields {
		col := f.DBColumn
		nullable := f.Type.Kind() == reflect.Ptr
		t := f.Type
		if nullable {
			t = t.Elem()
		}
		sqlType, ok := typeMap[t.String()]
		if !ok {
			// fallback: try Kind
			sqlType, ok = typeMap[t.Kind().String()]
			if !ok {
				sqlType = "TEXT"
			}
		}

		var constraints []string
		if col == info.PkName {
			switch dialect {
			case "mysql":
				constraints = append(constraints, "AUTO_INCREMENT")
			case "sqlite":
				sqlType = "INTEGER"
				constraints = append(constraints, "AUTOINCREMENT")
			case "postgres":
				if sqlType == "BIGINT" {
					sqlType = "BIGSERIAL"
				}
			}
			constraints = append([]string{"PRIMARY KEY"}, constraints...)
		} else if !nullable && !strings.HasSuffix(col, "_at") && col != opts.Sentinel {
			constraints = append(constraints, "NOT NULL")
		}
		defs = append(defs, strings.TrimSpace(fmt.Sprintf("%s %s %s", col, sqlType, strings.Join(constraints, " "))))
	}
	if indexMarker && dialect == "mysql" {
		defs = append(defs, fmt.Sprintf("INDEX %s (%s)", indexName, opts.Marker))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", info.TableName, strings.Join(defs, ",\n  "))}
	if indexMarker && dialect != "mysql" {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, info.TableName, opts.Marker))
	}
	return stmts, nil
}
