package orm

import (
	"fmt"
	"strings"

	"crudd/internal/common/inflect"
)

// Column types understood by the table implementations.
const (
	TypeInteger  = "integer"
	TypeString   = "string"
	TypeText     = "text"
	TypeUUID     = "uuid"
	TypeBoolean  = "boolean"
	TypeFloat    = "float"
	TypeDatetime = "datetime"
)

// Association kinds.
const (
	ManyToOne  = "manyToOne"
	OneToOne   = "oneToOne"
	OneToMany  = "oneToMany"
	ManyToMany = "manyToMany"
)

// Column is one table column.
type Column struct {
	Name string `yaml:"name" json:"name" toml:"name"`
	Type string `yaml:"type" json:"type" toml:"type"`
}

// Rules are the validation rules for one column.
type Rules struct {
	Required  bool              `yaml:"required" json:"required" toml:"required"`
	MinLength int               `yaml:"min_length" json:"min_length" toml:"min_length"`
	MaxLength int               `yaml:"max_length" json:"max_length" toml:"max_length"`
	Numeric   bool              `yaml:"numeric" json:"numeric" toml:"numeric"`
	Messages  map[string]string `yaml:"messages" json:"messages" toml:"messages"`
}

// Association links a table to a target table.
type Association struct {
	Name       string `yaml:"name" json:"name" toml:"name"`
	Type       string `yaml:"type" json:"type" toml:"type"`
	Target     string `yaml:"target" json:"target" toml:"target"`
	ForeignKey string `yaml:"foreign_key" json:"foreign_key" toml:"foreign_key"`
	BindingKey string `yaml:"binding_key" json:"binding_key" toml:"binding_key"`
	Property   string `yaml:"property" json:"property" toml:"property"`
}

// IsSingular reports whether the association resolves to a single row.
func (a Association) IsSingular() bool { return a.Type == ManyToOne || a.Type == OneToOne }

// Schema is the static definition of a table. Long-lived and read-only once
// normalized.
type Schema struct {
	Name           string           `yaml:"name" json:"name" toml:"name"`
	Table          string           `yaml:"table" json:"table" toml:"table"`
	Connection     string           `yaml:"connection" json:"connection" toml:"connection"`
	PrimaryKey     string           `yaml:"primary_key" json:"primary_key" toml:"primary_key"`
	PrimaryKeyType string           `yaml:"primary_key_type" json:"primary_key_type" toml:"primary_key_type"`
	DisplayField   string           `yaml:"display_field" json:"display_field" toml:"display_field"`
	Columns        []Column         `yaml:"columns" json:"columns" toml:"columns"`
	Rules          map[string]Rules `yaml:"rules" json:"rules" toml:"rules"`
	Associations   []Association    `yaml:"associations" json:"associations" toml:"associations"`
	Behaviors      []string         `yaml:"behaviors" json:"behaviors" toml:"behaviors"`
	// SearchCollections names the columns each search collection may filter
	// on. A missing "default" collection allows every column.
	SearchCollections map[string][]string `yaml:"search" json:"search" toml:"search"`
}

// Normalize fills defaults and checks the definition.
func (s *Schema) Normalize() error {
	if s.Name == "" {
		return fmt.Errorf("schema: name is required")
	}
	if s.Table == "" {
		s.Table = inflect.Underscore(s.Name)
	}
	if s.Connection == "" {
		s.Connection = "default"
	}
	if s.PrimaryKey == "" {
		s.PrimaryKey = "id"
	}
	if s.PrimaryKeyType == "" {
		s.PrimaryKeyType = TypeInteger
	}
	switch s.PrimaryKeyType {
	case TypeInteger, TypeUUID, TypeString:
	default:
		return fmt.Errorf("schema %s: unsupported primary key type %q", s.Name, s.PrimaryKeyType)
	}
	if !s.HasColumn(s.PrimaryKey) {
		s.Columns = append([]Column{{Name: s.PrimaryKey, Type: s.PrimaryKeyType}}, s.Columns...)
	}
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema %s: column %d has no name", s.Name, i)
		}
		if c.Type == "" {
			s.Columns[i].Type = TypeString
		}
	}
	if s.DisplayField == "" {
		s.DisplayField = s.PrimaryKey
		for _, f := range []string{"title", "name"} {
			if s.HasColumn(f) {
				s.DisplayField = f
				break
			}
		}
	}
	for i := range s.Associations {
		a := &s.Associations[i]
		if a.Name == "" || a.Target == "" {
			return fmt.Errorf("schema %s: association %d needs name and target", s.Name, i)
		}
		switch a.Type {
		case ManyToOne, OneToOne, OneToMany, ManyToMany:
		default:
			return fmt.Errorf("schema %s: association %s has unknown type %q", s.Name, a.Name, a.Type)
		}
		if a.ForeignKey == "" {
			if a.Type == ManyToOne {
				a.ForeignKey = inflect.Singular(inflect.Underscore(a.Target)) + "_id"
			} else {
				a.ForeignKey = inflect.Singular(inflect.Underscore(s.Name)) + "_id"
			}
		}
		if a.Property == "" {
			p := inflect.Underscore(a.Name)
			if a.IsSingular() {
				p = inflect.Singular(p)
			}
			a.Property = p
		}
	}
	return nil
}

// Column returns the named column.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s *Schema) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (s *Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Association looks up an association by name (case-insensitive).
func (s *Schema) Association(name string) (Association, bool) {
	for _, a := range s.Associations {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Association{}, false
}

// AssociationsOf returns the associations of the given types, in order.
func (s *Schema) AssociationsOf(types ...string) []Association {
	var out []Association
	for _, a := range s.Associations {
		for _, t := range types {
			if a.Type == t {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// HasBehavior reports whether a named behavior is attached.
func (s *Schema) HasBehavior(name string) bool {
	for _, b := range s.Behaviors {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// SearchFields returns the filterable columns of a search collection.
func (s *Schema) SearchFields(collection string) []string {
	if collection == "" {
		collection = "default"
	}
	if fields, ok := s.SearchCollections[collection]; ok {
		return fields
	}
	if collection == "default" {
		return s.ColumnNames()
	}
	return nil
}
