package backend

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeExecutor records the statements it receives and answers from canned
// data, so the request pipeline can be exercised without a database.
type fakeExecutor struct {
	queries   []string
	execs     []string
	rows      []map[string]interface{}
	affected  int64
	execErr   error
	existing  map[string]map[int64]bool
	existsErr error
}

func (e *fakeExecutor) Query(ctx context.Context, sqlText string) ([]map[string]interface{}, error) {
	e.queries = append(e.queries, sqlText)
	return e.rows, nil
}

func (e *fakeExecutor) Exec(ctx context.Context, sqlText string) (int64, error) {
	e.execs = append(e.execs, sqlText)
	return e.affected, e.execErr
}

func (e *fakeExecutor) NextSequence(ctx context.Context, applicationID int64, table string) (int64, error) {
	return 1, nil
}

func (e *fakeExecutor) RecordExists(ctx context.Context, applicationID int64, table string, id int64) (bool, error) {
	if e.existsErr != nil {
		return false, e.existsErr
	}
	return e.existing[table][id], nil
}

func testEndpoints() []Endpoint {
	return []Endpoint{
		{Route: "/clientes", Method: http.MethodPost,
			SQLTemplate: "INSERT INTO flexbase.records (table_name, value, application_id) VALUES ('clientes', jsonb_build_object('nome', ${nome}), ${id_aplicacao})"},
		{Route: "/clientes", Method: http.MethodGet,
			SQLTemplate: "SELECT record_id, value FROM flexbase.records WHERE table_name = 'clientes' AND application_id = ${id_aplicacao}"},
		{Route: "/clientes/{id}", Method: http.MethodDelete,
			SQLTemplate: "DELETE FROM flexbase.records WHERE application_id = ${id_aplicacao} AND (value->>'id')::BIGINT = ${id}"},
	}
}

func TestRunEndpoint_Select(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]interface{}{
		{"record_id": int64(1), "value": `{"id": 1, "nome": "Maria"}`},
		{"record_id": int64(2), "value": `{"id": 2, "nome": "José"}`},
	}}
	b := &Backend{executor: executor}

	status, response := b.runEndpoint(context.Background(), 7, http.MethodGet, "/clientes", nil, nil, testEndpoints())
	assert.Equal(t, http.StatusOK, status)

	documents, ok := response.([]interface{})
	assert.True(t, ok)
	assert.Len(t, documents, 2)
	first, ok := documents[0].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "Maria", first["nome"])

	assert.Len(t, executor.queries, 1)
	assert.Contains(t, executor.queries[0], "application_id = 7")
}

func TestRunEndpoint_Insert(t *testing.T) {
	executor := &fakeExecutor{affected: 1}
	b := &Backend{executor: executor}

	body := []byte(`{"nome": "Maria"}`)
	status, response := b.runEndpoint(context.Background(), 7, http.MethodPost, "/clientes", nil, body, testEndpoints())
	assert.Equal(t, http.StatusOK, status)

	affected, ok := response.(affectedResponse)
	assert.True(t, ok)
	assert.True(t, affected.Success)
	assert.Equal(t, int64(1), affected.RowsAffected)

	assert.Len(t, executor.execs, 1)
	assert.Contains(t, executor.execs[0], "'Maria'")
}

func TestRunEndpoint_Delete(t *testing.T) {
	executor := &fakeExecutor{affected: 1}
	b := &Backend{executor: executor}

	status, _ := b.runEndpoint(context.Background(), 7, http.MethodDelete, "/clientes/42", nil, nil, testEndpoints())
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, executor.execs[0], "(value->>'id')::BIGINT = 42")
}

func TestRunEndpoint_QueryFilter(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]interface{}{}}
	b := &Backend{executor: executor}

	endpoints := []Endpoint{{Route: "/clientes", Method: http.MethodGet,
		SQLTemplate: "SELECT record_id, value FROM flexbase.records WHERE application_id = ${id_aplicacao} AND value->>'nome' = ${nome}"}}

	query := url.Values{"nome": []string{"Maria"}}
	status, response := b.runEndpoint(context.Background(), 7, http.MethodGet, "/clientes", query, nil, endpoints)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, response.([]interface{}))

	assert.Len(t, executor.queries, 1)
	assert.Contains(t, executor.queries[0], "value->>'nome' = 'Maria'")
}

func TestRunEndpoint_NotFound(t *testing.T) {
	b := &Backend{executor: &fakeExecutor{}}

	status, response := b.runEndpoint(context.Background(), 7, http.MethodGet, "/produtos", nil, nil, testEndpoints())
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, response.(statusResponse).Success)
}

func TestRunEndpoint_MissingParameters(t *testing.T) {
	executor := &fakeExecutor{}
	b := &Backend{executor: executor}

	status, response := b.runEndpoint(context.Background(), 7, http.MethodPost, "/clientes", nil, []byte(`{}`), testEndpoints())
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "required parameters missing from the request", response.(statusResponse).Message)
	assert.Empty(t, executor.execs)
}

func TestRunEndpoint_RejectsInjection(t *testing.T) {
	executor := &fakeExecutor{}
	b := &Backend{executor: executor}

	body := []byte(`{"nome": "x' OR '1'='1"}`)
	status, response := b.runEndpoint(context.Background(), 7, http.MethodPost, "/clientes", nil, body, testEndpoints())
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, response.(statusResponse).Message, "invalid value for parameter 'nome'")
	assert.Empty(t, executor.execs)
}

func TestRunEndpoint_DanglingReference(t *testing.T) {
	executor := &fakeExecutor{existing: map[string]map[int64]bool{"clientes": {42: true}}}
	b := &Backend{executor: executor}

	endpoints := []Endpoint{{Route: "/pedidos", Method: http.MethodPost,
		SQLTemplate: "INSERT INTO flexbase.records (table_name, value, application_id) VALUES ('pedidos', jsonb_build_object('cliente_id', ${cliente_id}), ${id_aplicacao})"}}

	status, response := b.runEndpoint(context.Background(), 7, http.MethodPost, "/pedidos", nil,
		[]byte(`{"cliente_id": 999}`), endpoints)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, response.(statusResponse).Message, "cliente_id = 999 does not exist in table clientes")
	assert.Empty(t, executor.execs)

	status, _ = b.runEndpoint(context.Background(), 7, http.MethodPost, "/pedidos", nil,
		[]byte(`{"cliente_id": 42}`), endpoints)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, executor.execs, 1)
}

func TestShapeRows(t *testing.T) {
	rows := []map[string]interface{}{
		{"record_id": int64(1), "value": `{"nome": "Maria"}`},
		{"record_id": int64(2), "value": `broken`},
		{"count": int64(3)},
	}
	shaped := shapeRows(rows)
	assert.Len(t, shaped, 3)
	assert.Equal(t, "Maria", shaped[0].(map[string]interface{})["nome"])
	assert.Nil(t, shaped[1])
	assert.Equal(t, int64(3), shaped[2].(map[string]interface{})["count"])
}
