package backend

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/flexbase-tech/flexbase/core/schema"
)

// sequencer allocates monotonic per-(application,table) id values
type sequencer interface {
	NextSequence(ctx context.Context, applicationID int64, table string) (int64, error)
}

// ApplyInsertRules rewrites a decoded record value against the table's
// schema before it is inserted: primary key fields are overwritten with a
// freshly allocated sequence value, encrypted fields with the hex digest
// of their value. Fields without a rule pass through unchanged. A missing
// schema or table definition leaves the value untouched; schema
// enforcement is opportunistic, not mandatory.
func ApplyInsertRules(ctx context.Context, seq sequencer, applicationID int64, tableName string, value map[string]interface{}, db *schema.Database) (map[string]interface{}, error) {
	if db == nil || value == nil {
		return value, nil
	}
	table, ok := db.FindTable(tableName)
	if !ok {
		return value, nil
	}

	for _, f := range table.Fields {
		switch {
		case f.IsPrimaryKey():
			id, err := seq.NextSequence(ctx, applicationID, tableName)
			if err != nil {
				return nil, fmt.Errorf("cannot allocate id for %s: %s", tableName, err)
			}
			value[f.Name] = id
		case f.IsEncrypted():
			v, ok := value[f.Name]
			if !ok || v == nil {
				continue
			}
			s := stringifyValue(v)
			if s != "" {
				value[f.Name] = hashValue(s)
			}
		}
	}
	return value, nil
}

// ApplyUpdateRules rewrites an update payload against the table's schema:
// primary key fields are always forced back to the stored value, identity
// is immutable after creation. Encrypted fields are re-hashed only when
// the supplied text differs from the stored one; the comparison is
// necessarily textual since the stored value is a digest.
func ApplyUpdateRules(tableName string, newValue, existingValue map[string]interface{}, db *schema.Database) map[string]interface{} {
	if db == nil || newValue == nil {
		return newValue
	}
	table, ok := db.FindTable(tableName)
	if !ok {
		return newValue
	}

	for _, f := range table.Fields {
		switch {
		case f.IsPrimaryKey():
			if existing, ok := existingValue[f.Name]; ok && existing != nil {
				newValue[f.Name] = existing
			}
		case f.IsEncrypted():
			v, ok := newValue[f.Name]
			if !ok || v == nil {
				continue
			}
			s := stringifyValue(v)
			if s == "" {
				continue
			}
			existing := existingValue[f.Name]
			if existing == nil || s != stringifyValue(existing) {
				newValue[f.Name] = hashValue(s)
			}
		}
	}
	return newValue
}

// hashValue returns the one-way digest stored in place of encrypted field
// values. MD5 is kept for compatibility with statements generated by the
// template compiler, which hash with the database's MD5().
func hashValue(s string) string {
	digest := md5.Sum([]byte(s))
	return hex.EncodeToString(digest[:])
}

func stringifyValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
