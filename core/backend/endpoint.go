package backend

import (
	"context"
	"net/http"
)

// Endpoint is a generated route template: a path pattern with {name}
// segments, an SQL template with ${name} placeholders and the HTTP method
// it responds to. Endpoints are owned by exactly one application.
type Endpoint struct {
	EndpointID    int64  `json:"endpoint_id,omitempty"`
	ApplicationID int64  `json:"application_id"`
	Route         string `json:"route"`
	SQLTemplate   string `json:"sql_template"`
	Method        string `json:"method"`
}

// endpointsByApplication returns the application's endpoints in insertion
// order. The route matcher relies on this order: the first match wins.
func (b *Backend) endpointsByApplication(ctx context.Context, applicationID int64) ([]Endpoint, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT endpoint_id, application_id, route, sql_template, method FROM `+b.db.Schema+`.endpoints
WHERE application_id = $1 ORDER BY endpoint_id;`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []Endpoint
	for rows.Next() {
		var e Endpoint
		if err := rows.Scan(&e.EndpointID, &e.ApplicationID, &e.Route, &e.SQLTemplate, &e.Method); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

func (b *Backend) insertEndpoint(ctx context.Context, e Endpoint) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO `+b.db.Schema+`.endpoints (application_id, route, sql_template, method) VALUES($1,$2,$3,$4);`,
		e.ApplicationID, e.Route, e.SQLTemplate, e.Method)
	return err
}

// deleteEndpointsByApplication drops all endpoints of an application.
// Regenerating a database description always starts from a clean slate.
func (b *Backend) deleteEndpointsByApplication(ctx context.Context, applicationID int64) error {
	_, err := b.db.ExecContext(ctx,
		`DELETE FROM `+b.db.Schema+`.endpoints WHERE application_id = $1;`, applicationID)
	return err
}

// listEndpoints handles GET /applications/{application_id}/endpoints
func (b *Backend) listEndpoints(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := b.applicationFromRequest(w, r)
	if !ok {
		return
	}
	endpoints, err := b.endpointsByApplication(r.Context(), applicationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot read endpoints")
		return
	}
	if endpoints == nil {
		endpoints = []Endpoint{}
	}
	writeJSON(w, http.StatusOK, endpoints)
}
