package backend

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	libinjection "github.com/corazawaf/libinjection-go"
)

// ErrMissingParameters is returned when placeholders remain unconsumed
// after all substitution stages. A partially substituted statement is
// never executed.
var ErrMissingParameters = errors.New("required parameters missing")

// InvalidValueError rejects a substitution value that carries a SQL
// injection pattern.
type InvalidValueError struct {
	Field       string
	Fingerprint string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for parameter '%s'", e.Field)
}

// Interpolate substitutes every named placeholder of a SQL template with a
// literal value. The four stages run in order and each stage only replaces
// tokens still present, so earlier stages take precedence on name collisions:
//
//  1. ${id_aplicacao} with the application id
//  2. ${name} for every path binding, unquoted
//  3. ${name} for every body JSON field, quoted by type
//  4. ${name} for every query parameter, numeric values unquoted
//
// String values are scanned for SQL injection patterns before they are
// embedded; a positive fingerprint aborts with an InvalidValueError.
// Leftover placeholders abort with ErrMissingParameters.
func Interpolate(template string, applicationID int64, pathParams map[string]string, queryParams url.Values, body []byte) (string, error) {
	sqlText := strings.ReplaceAll(template, placeholderApplicationID, strconv.FormatInt(applicationID, 10))

	// path parameters are trusted to already be typed correctly, they are
	// matched out of the route and carry no quoting
	for name, value := range pathParams {
		sqlText = strings.ReplaceAll(sqlText, "${"+name+"}", value)
	}

	if len(bytes.TrimSpace(body)) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		var fields map[string]interface{}
		// an unparseable body is not fatal here; the leftover check below
		// rejects the request if the template needed any of its values
		if err := decoder.Decode(&fields); err == nil {
			for name, value := range fields {
				placeholder := "${" + name + "}"
				if !strings.Contains(sqlText, placeholder) {
					continue
				}
				literal, err := literalForValue(name, value)
				if err != nil {
					return "", err
				}
				sqlText = strings.ReplaceAll(sqlText, placeholder, literal)
			}
		}
	}

	for name := range queryParams {
		placeholder := "${" + name + "}"
		if !strings.Contains(sqlText, placeholder) {
			continue
		}
		value := queryParams.Get(name)
		var literal string
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			literal = value
		} else {
			if err := checkInjection(name, value); err != nil {
				return "", err
			}
			literal = quoteString(value)
		}
		sqlText = strings.ReplaceAll(sqlText, placeholder, literal)
	}

	if strings.Contains(sqlText, "${") {
		return "", ErrMissingParameters
	}
	return sqlText, nil
}

// literalForValue renders a decoded JSON value as a SQL literal:
// null becomes NULL, numbers and booleans stay unquoted, everything else
// is treated as a string with embedded single quotes doubled.
func literalForValue(name string, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case string:
		if err := checkInjection(name, v); err != nil {
			return "", err
		}
		return quoteString(v), nil
	default:
		// nested objects and arrays are stored as their JSON text
		jsonData, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		s := string(jsonData)
		if err := checkInjection(name, s); err != nil {
			return "", err
		}
		return quoteString(s), nil
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func checkInjection(name, value string) error {
	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return &InvalidValueError{Field: name, Fingerprint: string(fingerprint)}
	}
	return nil
}
