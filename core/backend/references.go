package backend

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/flexbase-tech/flexbase/core/logger"
)

// ReferenceError reports a payload field pointing at a record that does
// not exist for this application.
type ReferenceError struct {
	Field string
	Value int64
	Table string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("invalid reference: %s = %d does not exist in table %s", e.Field, e.Value, e.Table)
}

// well known singular to plural table names; anything else gets a naive "s"
var pluralTables = map[string]string{
	"cliente":   "clientes",
	"produto":   "produtos",
	"usuario":   "usuarios",
	"categoria": "categorias",
}

// shorthand reference fields used by early tenants
var shorthandTables = map[string]string{
	"id_c": "clientes",
	"id_p": "produtos",
}

// isReferenceField reports whether a payload field name looks like a
// foreign key reference. The bare "id" is the record's own primary key
// and never a reference.
func isReferenceField(name string) bool {
	return name != "id" && (strings.HasSuffix(name, "_id") || strings.HasPrefix(name, "id_"))
}

// referencedTable derives the table a reference field points at, or ""
// when no table can be derived.
func referencedTable(name string) string {
	if table, ok := shorthandTables[name]; ok {
		return table
	}
	if strings.HasSuffix(name, "_id") {
		return pluralize(strings.TrimSuffix(name, "_id"))
	}
	if strings.HasPrefix(name, "id_") {
		return pluralize(strings.TrimPrefix(name, "id_"))
	}
	return ""
}

func pluralize(base string) string {
	if plural, ok := pluralTables[base]; ok {
		return plural
	}
	if !strings.HasSuffix(base, "s") {
		return base + "s"
	}
	return base
}

// validateReferences inspects a write payload for reference fields and
// confirms every referenced record exists for this application. An
// unresolved reference aborts the write with a ReferenceError.
//
// The check deliberately fails open: any internal error while validating
// is logged and treated as "reference OK" so that storage hiccups never
// block writes on their own.
func (b *Backend) validateReferences(ctx context.Context, applicationID int64, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	rlog := logger.FromContext(ctx)

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var fields map[string]interface{}
	if err := decoder.Decode(&fields); err != nil {
		rlog.WithError(err).Debugln("reference validation skipped, body is not a JSON object")
		return nil
	}

	for name, value := range fields {
		if !isReferenceField(name) {
			continue
		}
		number, ok := value.(json.Number)
		if !ok {
			continue
		}
		id, err := number.Int64()
		if err != nil {
			continue
		}
		table := referencedTable(name)
		if table == "" {
			continue
		}
		exists, err := b.executor.RecordExists(ctx, applicationID, table, id)
		if err != nil {
			rlog.WithError(err).Warningf("cannot validate reference %s, assuming it is valid", name)
			continue
		}
		if !exists {
			return &ReferenceError{Field: name, Value: id, Table: table}
		}
	}
	return nil
}
