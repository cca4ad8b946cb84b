/*Package schema holds the in-memory model of a tenant described database.

A description is user-authored JSON of the form

	{
	  "banco": {
	    "tabelas": [
	      {
	        "nome": "clientes",
	        "campos": [
	          {"nome": "id", "tipo": "id", "chave_primaria": true},
	          {"nome": "nome", "tipo": "texto"},
	          {"nome": "senha", "tipo": "criptografia"}
	        ]
	      }
	    ]
	  }
	}

The description drives endpoint generation and is consulted again at write
time to apply field rules. It is a hint, not an enforced schema: the record
store itself remains schemaless.
*/
package schema

import (
	"fmt"
	"regexp"

	"github.com/goccy/go-json"
)

// field kinds with special behavior; anything else is passed through untouched
const (
	KindID        = "id"
	KindEncrypted = "criptografia"
)

// DefaultPrimaryKey is assumed when a table declares no primary key field
const DefaultPrimaryKey = "id"

// Description is the top-level submission payload
type Description struct {
	Database Database `json:"banco"`
}

// Database is an ordered set of table definitions
type Database struct {
	Tables []Table `json:"tabelas"`
}

// Table is a named, ordered set of field definitions
type Table struct {
	Name   string  `json:"nome"`
	Fields []Field `json:"campos"`
}

// Field describes a single column-like entry of a table
type Field struct {
	Name       string `json:"nome"`
	Kind       string `json:"tipo"`
	PrimaryKey bool   `json:"chave_primaria"`
}

// IsEncrypted returns true for fields whose values must be stored as a
// one-way hash. Both the wire spelling and the english alias are accepted.
func (f Field) IsEncrypted() bool {
	return f.Kind == KindEncrypted || f.Kind == "encrypted"
}

// IsPrimaryKey returns true if the field is the table's primary key,
// either explicitly or through the "id" kind.
func (f Field) IsPrimaryKey() bool {
	return f.PrimaryKey || f.Kind == KindID
}

// PrimaryKeyField resolves the authoritative primary key field name:
// the first field flagged chave_primaria, else the first field of kind "id",
// else the literal name "id".
func (t Table) PrimaryKeyField() string {
	for _, f := range t.Fields {
		if f.PrimaryKey {
			return f.Name
		}
	}
	for _, f := range t.Fields {
		if f.Kind == KindID {
			return f.Name
		}
	}
	return DefaultPrimaryKey
}

// FindTable returns the table definition with the given name
func (d Database) FindTable(name string) (Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether a tenant supplied table or field name is safe
// to embed into generated SQL text.
func ValidIdent(s string) bool {
	return identRegexp.MatchString(s)
}

// ParseDescription decodes and sanity checks a database description.
// Table and field names are restricted to a safe identifier character set
// because they end up verbatim in generated SQL.
func ParseDescription(data []byte) (*Description, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid JSON: %s", err)
	}
	if d.Database.Tables == nil {
		return nil, fmt.Errorf("no tables in description")
	}
	for _, t := range d.Database.Tables {
		if !ValidIdent(t.Name) {
			return nil, fmt.Errorf("invalid table name '%s'", t.Name)
		}
		for _, f := range t.Fields {
			if !ValidIdent(f.Name) {
				return nil, fmt.Errorf("invalid field name '%s' in table '%s'", f.Name, t.Name)
			}
		}
	}
	return &d, nil
}
