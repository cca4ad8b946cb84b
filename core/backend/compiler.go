package backend

import (
	"fmt"
	"strings"

	"github.com/flexbase-tech/flexbase/core"
	"github.com/flexbase-tech/flexbase/core/schema"
)

// the always-available placeholders of every generated SQL template
const (
	placeholderApplicationID = "${id_aplicacao}"
	placeholderID            = "${id}"
)

// CompileTable translates one table definition into the five endpoint
// templates create, list, get, update and delete. The SQL bodies target
// the generic record store; value objects are assembled with
// jsonb_build_object. Primary key fields draw their value from the
// per-(application,table) sequence, encrypted fields are hashed in the
// statement itself.
//
// Table and field names end up verbatim in SQL text, so compilation
// refuses anything outside the safe identifier character set.
func CompileTable(dbSchema string, applicationID int64, table schema.Table) ([]Endpoint, error) {
	if !schema.ValidIdent(table.Name) {
		return nil, fmt.Errorf("invalid table name '%s'", table.Name)
	}
	for _, f := range table.Fields {
		if !schema.ValidIdent(f.Name) {
			return nil, fmt.Errorf("invalid field name '%s' in table '%s'", f.Name, table.Name)
		}
	}

	pk := table.PrimaryKeyField()
	records := dbSchema + ".records"

	// create
	var insertPairs []string
	for _, f := range table.Fields {
		switch {
		case f.IsPrimaryKey():
			insertPairs = append(insertPairs,
				fmt.Sprintf("'%s', %s.fn_next_id(%s, '%s')", f.Name, dbSchema, placeholderApplicationID, table.Name))
		case f.IsEncrypted():
			insertPairs = append(insertPairs,
				fmt.Sprintf("'%s', MD5(${%s})", f.Name, f.Name))
		default:
			insertPairs = append(insertPairs,
				fmt.Sprintf("'%s', ${%s}", f.Name, f.Name))
		}
	}
	createSQL := fmt.Sprintf("INSERT INTO %s (table_name, value, application_id) VALUES ('%s', jsonb_build_object(%s), %s)",
		records, table.Name, strings.Join(insertPairs, ", "), placeholderApplicationID)

	// list and get share the projection: storage id, logical primary key, document
	projection := fmt.Sprintf("SELECT record_id, (value->>'%s')::BIGINT AS logical_id, value FROM %s WHERE table_name = '%s' AND application_id = %s",
		pk, records, table.Name, placeholderApplicationID)
	listSQL := projection + fmt.Sprintf(" ORDER BY (value->>'%s')::BIGINT", pk)
	getSQL := projection + fmt.Sprintf(" AND (value->>'%s')::BIGINT = %s", pk, placeholderID)

	// update rebuilds the document field by field: the primary key always
	// keeps its stored value, encrypted fields are re-hashed only when a
	// replacement was supplied, everything else falls back to the stored value
	var updatePairs []string
	for _, f := range table.Fields {
		switch {
		case f.IsPrimaryKey():
			updatePairs = append(updatePairs,
				fmt.Sprintf("'%s', (value->>'%s')::BIGINT", f.Name, f.Name))
		case f.IsEncrypted():
			updatePairs = append(updatePairs,
				fmt.Sprintf("'%s', CASE WHEN ${%s} IS NOT NULL THEN MD5(${%s}) ELSE value->>'%s' END", f.Name, f.Name, f.Name, f.Name))
		default:
			updatePairs = append(updatePairs,
				fmt.Sprintf("'%s', COALESCE(${%s}, value->>'%s')", f.Name, f.Name, f.Name))
		}
	}
	whereOne := fmt.Sprintf(" WHERE table_name = '%s' AND application_id = %s AND (value->>'%s')::BIGINT = %s",
		table.Name, placeholderApplicationID, pk, placeholderID)
	updateSQL := fmt.Sprintf("UPDATE %s SET value = jsonb_build_object(%s)", records, strings.Join(updatePairs, ", ")) + whereOne

	deleteSQL := fmt.Sprintf("DELETE FROM %s", records) + whereOne

	listRoute := "/" + table.Name
	itemRoute := "/" + table.Name + "/{id}"

	return []Endpoint{
		{ApplicationID: applicationID, Route: listRoute, SQLTemplate: createSQL, Method: core.OperationCreate.Method()},
		{ApplicationID: applicationID, Route: listRoute, SQLTemplate: listSQL, Method: core.OperationList.Method()},
		{ApplicationID: applicationID, Route: itemRoute, SQLTemplate: getSQL, Method: core.OperationRead.Method()},
		{ApplicationID: applicationID, Route: itemRoute, SQLTemplate: updateSQL, Method: core.OperationUpdate.Method()},
		{ApplicationID: applicationID, Route: itemRoute, SQLTemplate: deleteSQL, Method: core.OperationDelete.Method()},
	}, nil
}
