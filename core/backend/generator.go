package backend

import (
	"io"
	"net/http"
	"strconv"

	"github.com/flexbase-tech/flexbase/core/logger"
	"github.com/flexbase-tech/flexbase/core/schema"
)

type generateResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ApplicationID    int64  `json:"application_id"`
	EndpointsCreated int    `json:"endpoints_created"`
	TotalTables      int    `json:"total_tables"`
}

// generateEndpoints handles POST /applications/{application_id}/database.
// It validates and stores the submitted database description, drops the
// application's previous endpoints and compiles five fresh endpoints per
// table.
func (b *Backend) generateEndpoints(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())

	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	if err := b.validator.ValidateString(string(body), schema.DescriptionSchemaID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid database description: "+err.Error())
		return
	}
	description, err := schema.ParseDescription(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// the description is consulted again at write time by the field rules
	// and must outlive this request
	if err := b.schemaRegistry.Write(strconv.FormatInt(applicationID, 10), description.Database); err != nil {
		rlog.WithError(err).Errorln("cannot store database description")
		writeError(w, http.StatusInternalServerError, "cannot store database description")
		return
	}

	if err := b.deleteEndpointsByApplication(r.Context(), applicationID); err != nil {
		rlog.WithError(err).Errorln("cannot drop previous endpoints")
		writeError(w, http.StatusInternalServerError, "cannot drop previous endpoints")
		return
	}

	created := 0
	for _, table := range description.Database.Tables {
		endpoints, err := CompileTable(b.db.Schema, applicationID, table)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, endpoint := range endpoints {
			if err := b.insertEndpoint(r.Context(), endpoint); err != nil {
				rlog.WithError(err).Errorln("cannot store endpoint")
				writeError(w, http.StatusInternalServerError, "cannot store endpoint")
				return
			}
			created++
		}
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Success:          true,
		Message:          "endpoints generated successfully",
		ApplicationID:    applicationID,
		EndpointsCreated: created,
		TotalTables:      len(description.Database.Tables),
	})
}

// databaseDescription loads the application's stored description; it
// returns nil when the application never submitted one.
func (b *Backend) databaseDescription(applicationID int64) *schema.Database {
	var database schema.Database
	timestamp, err := b.schemaRegistry.Read(strconv.FormatInt(applicationID, 10), &database)
	if err != nil {
		logger.Default().WithError(err).Warningln("cannot read database description")
		return nil
	}
	if timestamp.IsZero() {
		return nil
	}
	return &database
}
