package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// RelationKind is the closed set of relation kinds understood by the ORM.
type RelationKind int

const (
	BelongsTo RelationKind = iota + 1
	HasOne
	HasMany
	ManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongsTo"
	case HasOne:
		return "hasOne"
	case HasMany:
		return "hasMany"
	case ManyToMany:
		return "manyToMany"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// Cardinality reports whether a relation resolves to one or many rows.
type Cardinality int

const (
	One Cardinality = iota + 1
	Many
)

func (c Cardinality) String() string {
	if c == One {
		return "one"
	}
	return "many"
}

// Relation describes one `thing:"..."` tagged field.
type Relation struct {
	Name           string       // Go field name on the owning struct
	Kind           RelationKind // Parsed from the first tag segment
	Related        reflect.Type // Related struct type (never a pointer)
	FieldIndex     []int        // Index of the relation field on the owner
	ForeignKey     string       // belongsTo: column on owner; hasOne/hasMany: column on related
	LocalKey       string       // Owner column matched against ForeignKey; empty means owner PK
	JoinTable      string       // manyToMany only
	JoinLocalKey   string       // manyToMany: join column pointing at the owner
	JoinRelatedKey string       // manyToMany: join column pointing at the related row
	sliceOfPtr     bool
}

// Cardinality derives one/many from the relation kind.
func (r *Relation) Cardinality() Cardinality {
	switch r.Kind {
	case BelongsTo, HasOne:
		return One
	case HasMany, ManyToMany:
		return Many
	default:
		return Many
	}
}

// SliceOfPtr reports whether a to-many field is declared as []*R.
func (r *Relation) SliceOfPtr() bool {
	return r.sliceOfPtr
}

// parseRelation parses a tag such as "hasMany;fk:order_id".
func parseRelation(field reflect.StructField, tag string, index []int) (*Relation, error) {
	parts := strings.Split(tag, ";")
	rel := &Relation{Name: field.Name, FieldIndex: index}

	switch strings.TrimSpace(parts[0]) {
	case "belongsTo":
		rel.Kind = BelongsTo
	case "hasOne":
		rel.Kind = HasOne
	case "hasMany":
		rel.Kind = HasMany
	case "manyToMany":
		rel.Kind = ManyToMany
	default:
		return nil, fmt.Errorf("unsupported relation type in thing tag on %s: %s", field.Name, parts[0])
	}

	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "" {
			continue
		}
		keyValue := strings.SplitN(part, ":", 2)
		if len(keyValue) != 2 {
			return nil, fmt.Errorf("invalid key-value pair in thing tag on %s: %s", field.Name, part)
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])

		switch key {
		case "fk", "foreignKey":
			rel.ForeignKey = value
		case "localKey":
			rel.LocalKey = value
		case "joinTable":
			rel.JoinTable = value
		case "joinLocalKey":
			rel.JoinLocalKey = value
		case "joinRelatedKey":
			rel.JoinRelatedKey = value
		default:
			return nil, fmt.Errorf("unknown key in thing tag on %s: %s", field.Name, key)
		}
	}

	fieldType := field.Type
	switch rel.Cardinality() {
	case One:
		if fieldType.Kind() != reflect.Ptr || fieldType.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("%s field %s must be a pointer to a struct, got %s", rel.Kind, field.Name, fieldType)
		}
		rel.Related = fieldType.Elem()
	case Many:
		if fieldType.Kind() != reflect.Slice {
			return nil, fmt.Errorf("%s field %s must be a slice, got %s", rel.Kind, field.Name, fieldType)
		}
		elem := fieldType.Elem()
		switch {
		case elem.Kind() == reflect.Ptr && elem.Elem().Kind() == reflect.Struct:
			rel.Related = elem.Elem()
			rel.sliceOfPtr = true
		case elem.Kind() == reflect.Struct:
			rel.Related = elem
		default:
			return nil, fmt.Errorf("%s field %s must be a slice of structs or struct pointers, got %s", rel.Kind, field.Name, fieldType)
		}
	}

	if rel.Kind == ManyToMany {
		if rel.JoinTable == "" || rel.JoinLocalKey == "" || rel.JoinRelatedKey == "" {
			return nil, fmt.Errorf("missing joinTable/joinLocalKey/joinRelatedKey in thing tag for manyToMany relation %s", field.Name)
		}
	} else if rel.ForeignKey == "" {
		return nil, fmt.Errorf("missing 'fk' (foreignKey) in thing tag for %s relation %s", rel.Kind, field.Name)
	}
	return rel, nil
}
