package backend

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/flexbase-tech/flexbase/core"
	"github.com/flexbase-tech/flexbase/core/csql"
	"github.com/flexbase-tech/flexbase/core/logger"
)

// Record is a stored record of the generic record store. The value is an
// opaque JSON document whose shape is governed by, but not enforced
// against, the application's database description. The record id is the
// storage identity; the document's own primary key lives inside the value.
type Record struct {
	RecordID      int64           `json:"record_id"`
	TableName     string          `json:"table_name"`
	Value         json.RawMessage `json:"value"`
	ApplicationID int64           `json:"application_id"`
}

func decodeRecordValue(data []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var value map[string]interface{}
	err := decoder.Decode(&value)
	return value, err
}

// recordsList handles GET /applications/{application_id}/records, with an
// optional ?table= filter
func (b *Backend) recordsList(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}
	rlog := logger.FromContext(r.Context())

	query := `SELECT record_id, table_name, value, application_id FROM ` + b.db.Schema + `.records WHERE application_id = $1`
	queryParameters := []interface{}{applicationID}
	if table := r.URL.Query().Get("table"); table != "" {
		query += ` AND table_name = $2`
		queryParameters = append(queryParameters, table)
	}
	query += ` ORDER BY record_id;`

	rows, err := b.db.QueryContext(r.Context(), query, queryParameters...)
	if err != nil {
		rlog.WithError(err).Errorln("cannot read records")
		writeError(w, http.StatusInternalServerError, "cannot read records")
		return
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.RecordID, &record.TableName, &record.Value, &record.ApplicationID); err != nil {
			rlog.WithError(err).Errorln("cannot scan record")
			writeError(w, http.StatusInternalServerError, "cannot read records")
			return
		}
		records = append(records, record)
	}
	writeJSON(w, http.StatusOK, records)
}

// recordsGet handles GET /applications/{application_id}/records/{record_id}
func (b *Backend) recordsGet(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}
	recordID, err := strconv.ParseInt(mux.Vars(r)["record_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var record Record
	err = b.db.QueryRowContext(r.Context(),
		`SELECT record_id, table_name, value, application_id FROM `+b.db.Schema+`.records
WHERE record_id = $1 AND application_id = $2;`, recordID, applicationID).
		Scan(&record.RecordID, &record.TableName, &record.Value, &record.ApplicationID)
	if err == csql.ErrNoRows {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("cannot read record")
		writeError(w, http.StatusInternalServerError, "cannot read record")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// recordsCreate handles POST /applications/{application_id}/records.
// The payload is validated for dangling references and rewritten by the
// insert field rules before it is stored.
func (b *Backend) recordsCreate(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}
	rlog := logger.FromContext(r.Context())

	var record Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if record.TableName == "" || len(record.Value) == 0 {
		writeError(w, http.StatusBadRequest, "table_name and value are mandatory")
		return
	}

	if err := b.validateReferences(r.Context(), applicationID, record.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	value, err := decodeRecordValue(record.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be a JSON object")
		return
	}
	value, err = ApplyInsertRules(r.Context(), b.executor, applicationID, record.TableName, value, b.databaseDescription(applicationID))
	if err != nil {
		rlog.WithError(err).Errorln("cannot apply field rules")
		writeError(w, http.StatusInternalServerError, "cannot apply field rules")
		return
	}
	record.Value, _ = json.Marshal(value)
	record.ApplicationID = applicationID

	err = b.db.QueryRowContext(r.Context(),
		`INSERT INTO `+b.db.Schema+`.records (table_name, value, application_id) VALUES($1,$2,$3) RETURNING record_id;`,
		record.TableName, string(record.Value), applicationID).Scan(&record.RecordID)
	if err != nil {
		rlog.WithError(err).Errorln("cannot create record")
		writeError(w, http.StatusInternalServerError, "cannot create record")
		return
	}

	b.notify(applicationID, record.TableName, core.OperationCreate, record.Value)
	writeJSON(w, http.StatusCreated, record)
}

// recordsUpdate handles PUT /applications/{application_id}/records/{record_id}.
// The update field rules keep the stored primary key and only re-hash
// encrypted fields that actually changed.
func (b *Backend) recordsUpdate(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}
	rlog := logger.FromContext(r.Context())

	recordID, err := strconv.ParseInt(mux.Vars(r)["record_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var record Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if record.TableName == "" || len(record.Value) == 0 {
		writeError(w, http.StatusBadRequest, "table_name and value are mandatory")
		return
	}

	var existingRaw json.RawMessage
	err = b.db.QueryRowContext(r.Context(),
		`SELECT value FROM `+b.db.Schema+`.records WHERE record_id = $1 AND application_id = $2;`,
		recordID, applicationID).Scan(&existingRaw)
	if err == csql.ErrNoRows {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		rlog.WithError(err).Errorln("cannot read record")
		writeError(w, http.StatusInternalServerError, "cannot read record")
		return
	}

	if err := b.validateReferences(r.Context(), applicationID, record.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	newValue, err := decodeRecordValue(record.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be a JSON object")
		return
	}
	existingValue, err := decodeRecordValue(existingRaw)
	if err != nil {
		rlog.WithError(err).Errorln("stored record value is not a JSON object")
		writeError(w, http.StatusInternalServerError, "cannot read record")
		return
	}

	newValue = ApplyUpdateRules(record.TableName, newValue, existingValue, b.databaseDescription(applicationID))
	record.Value, _ = json.Marshal(newValue)
	record.RecordID = recordID
	record.ApplicationID = applicationID

	res, err := b.db.ExecContext(r.Context(),
		`UPDATE `+b.db.Schema+`.records SET value = $1 WHERE record_id = $2 AND application_id = $3;`,
		string(record.Value), recordID, applicationID)
	if err != nil {
		rlog.WithError(err).Errorln("cannot update record")
		writeError(w, http.StatusInternalServerError, "cannot update record")
		return
	}
	if count, _ := res.RowsAffected(); count == 0 {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	b.notify(applicationID, record.TableName, core.OperationUpdate, record.Value)
	writeJSON(w, http.StatusOK, record)
}

// recordsDelete handles DELETE /applications/{application_id}/records/{record_id}
func (b *Backend) recordsDelete(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}
	recordID, err := strconv.ParseInt(mux.Vars(r)["record_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var tableName string
	var value json.RawMessage
	err = b.db.QueryRowContext(r.Context(),
		`DELETE FROM `+b.db.Schema+`.records WHERE record_id = $1 AND application_id = $2 RETURNING table_name, value;`,
		recordID, applicationID).Scan(&tableName, &value)
	if err == csql.ErrNoRows {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("cannot delete record")
		writeError(w, http.StatusInternalServerError, "cannot delete record")
		return
	}

	b.notify(applicationID, tableName, core.OperationDelete, value)
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "record deleted successfully"})
}
