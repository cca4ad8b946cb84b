package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/flexbase-tech/flexbase/core"
	"github.com/flexbase-tech/flexbase/core/logger"
)

type affectedResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	RowsAffected int64  `json:"rows_affected"`
}

// executeEndpoint handles every request below /applications/{application_id}/api/.
// It matches the request against the application's generated endpoints,
// validates references on write bodies, interpolates the SQL template and
// runs the result against the record store.
func (b *Backend) executeEndpoint(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())

	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}

	routePath := "/" + strings.TrimPrefix(mux.Vars(r)["route"], "/")
	if routePath == "/" {
		writeError(w, http.StatusBadRequest, "endpoint route not provided")
		return
	}

	endpoints, err := b.endpointsByApplication(r.Context(), applicationID)
	if err != nil {
		rlog.WithError(err).Errorln("cannot read endpoints")
		writeError(w, http.StatusInternalServerError, "cannot read endpoints")
		return
	}

	var body []byte
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cannot read request body")
			return
		}
	}

	status, response := b.runEndpoint(r.Context(), applicationID, r.Method, routePath, r.URL.Query(), body, endpoints)
	writeJSON(w, status, response)
}

// runEndpoint is the request pipeline behind a generated endpoint: match,
// validate references on writes, interpolate, execute, shape the result.
// It returns the HTTP status and the response document.
func (b *Backend) runEndpoint(ctx context.Context, applicationID int64, method, path string, query url.Values, body []byte, endpoints []Endpoint) (int, interface{}) {
	rlog := logger.FromContext(ctx)

	endpoint, pathParams, found := MatchRoute(method, path, endpoints)
	if !found {
		return http.StatusNotFound, statusResponse{Success: false, Message: "no endpoint found for this route and method"}
	}

	if method == http.MethodPost || method == http.MethodPut {
		if err := b.validateReferences(ctx, applicationID, body); err != nil {
			return http.StatusBadRequest, statusResponse{Success: false, Message: err.Error()}
		}
	}

	sqlText, err := Interpolate(endpoint.SQLTemplate, applicationID, pathParams, query, body)
	if err != nil {
		var invalidValue *InvalidValueError
		switch {
		case errors.Is(err, ErrMissingParameters):
			return http.StatusBadRequest, statusResponse{Success: false, Message: "required parameters missing from the request"}
		case errors.As(err, &invalidValue):
			rlog.Warningf("rejected value for parameter '%s', injection fingerprint %s", invalidValue.Field, invalidValue.Fingerprint)
			return http.StatusBadRequest, statusResponse{Success: false, Message: invalidValue.Error()}
		default:
			return http.StatusBadRequest, statusResponse{Success: false, Message: err.Error()}
		}
	}
	rlog.Debugln("executing generated statement:", sqlText)

	if isSelect(sqlText) {
		rows, err := b.executor.Query(ctx, sqlText)
		if err != nil {
			rlog.WithError(err).Errorln("cannot execute generated query")
			return http.StatusInternalServerError, statusResponse{Success: false, Message: "error executing query"}
		}
		return http.StatusOK, shapeRows(rows)
	}

	affected, err := b.executor.Exec(ctx, sqlText)
	if err != nil {
		rlog.WithError(err).Errorln("cannot execute generated statement")
		return http.StatusInternalServerError, statusResponse{Success: false, Message: "error executing query"}
	}

	if affected > 0 {
		table := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
		b.notify(applicationID, table, operationForMethod(method), body)
	}

	return http.StatusOK, affectedResponse{Success: true, Message: "operation executed successfully", RowsAffected: affected}
}

func isSelect(sqlText string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sqlText)), "select")
}

func operationForMethod(method string) core.Operation {
	switch method {
	case http.MethodPost:
		return core.OperationCreate
	case http.MethodPut:
		return core.OperationUpdate
	case http.MethodDelete:
		return core.OperationDelete
	default:
		return core.OperationRead
	}
}

// shapeRows converts a result set into the response array. When a row
// carries the record store's value column, the element is the stored
// document itself; otherwise it is a flattened object of all columns.
func shapeRows(rows []map[string]interface{}) []interface{} {
	result := []interface{}{}
	for _, row := range rows {
		raw, ok := row["value"]
		if !ok {
			result = append(result, row)
			continue
		}
		text, ok := raw.(string)
		if !ok {
			result = append(result, nil)
			continue
		}
		var document interface{}
		if err := json.Unmarshal([]byte(text), &document); err != nil {
			result = append(result, nil)
			continue
		}
		result = append(result, document)
	}
	return result
}
