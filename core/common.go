package core

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Operation represents a backend storage operation, one of Create, List, Read, Update, Delete
type Operation string

// all supported operations on generated endpoints
const (
	OperationCreate Operation = "create"
	OperationList   Operation = "list"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationList, OperationRead, OperationUpdate, OperationDelete:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// Method returns the HTTP method a generated endpoint for this operation responds to.
func (o Operation) Method() string {
	switch o {
	case OperationCreate:
		return http.MethodPost
	case OperationUpdate:
		return http.MethodPut
	case OperationDelete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}
