package core

import (
	"net/http"
	"testing"

	"github.com/goccy/go-json"
)

func TestOperations_JSON_Unmarshalling(t *testing.T) {

	type Object struct {
		Operations []Operation `json:"operations"`
	}
	var object Object
	jsonRead := `{"operations":["create","read","update","list","delete"]}`
	err := json.Unmarshal([]byte(jsonRead), &object)
	if err != nil {
		t.Fatal(err)
	}

	jsonRead = `{"operations":["invalid"]}`
	err = json.Unmarshal([]byte(jsonRead), &object)
	if err == nil {
		t.Fatal("invalid operation accepted")
	}

}

func TestOperation_Method(t *testing.T) {
	methods := map[Operation]string{
		OperationCreate: http.MethodPost,
		OperationList:   http.MethodGet,
		OperationRead:   http.MethodGet,
		OperationUpdate: http.MethodPut,
		OperationDelete: http.MethodDelete,
	}
	for operation, method := range methods {
		if got := operation.Method(); got != method {
			t.Fatalf("expected %s for %s, got %s", method, operation, got)
		}
	}
}
