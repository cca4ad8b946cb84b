package backend

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/flexbase-tech/flexbase/core/access"
)

// every response carries a success flag and a human readable message;
// the HTTP status code is the authoritative signal for automated clients
type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	jsonData, _ := json.MarshalWithOption(v, json.DisableHTMLEscape())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonData)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{Success: false, Message: message})
}

// applicationFromRequest parses the application id from the route and, when
// authorization is enabled, checks that the caller is entitled to it.
// On failure it writes the error response and returns false.
func (b *Backend) applicationFromRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	params := mux.Vars(r)
	applicationID, err := strconv.ParseInt(params["application_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid application id")
		return 0, false
	}
	if b.authorizationEnabled {
		auth := access.AuthorizationFromContext(r.Context())
		if auth == nil {
			writeError(w, http.StatusUnauthorized, "authentication token not provided")
			return 0, false
		}
		if !auth.ForApplication(applicationID) {
			writeError(w, http.StatusForbidden, "you do not have permission to access this application")
			return 0, false
		}
	}
	return applicationID, true
}
