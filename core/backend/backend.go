package backend

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flexbase-tech/flexbase/core"
	"github.com/flexbase-tech/flexbase/core/csql"
	"github.com/flexbase-tech/flexbase/core/logger"
	"github.com/flexbase-tech/flexbase/core/registry"
	"github.com/flexbase-tech/flexbase/core/schema"
)

// Backend is the dynamic endpoint backend. It compiles tenant database
// descriptions into endpoint templates and serves the generated routes
// against the generic record store.
type Backend struct {
	db                   *csql.DB
	router               *mux.Router
	notifier             core.Notifier
	executor             Executor
	validator            *schema.Validator
	schemaRegistry       registry.Accessor
	authorizationEnabled bool
}

// Builder is a builder helper for the Backend
type Builder struct {
	// DB is a postgres database. This is mandatory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Notifier receives a notification for every record changed through a
	// generated endpoint or the record store. This is optional.
	Notifier core.Notifier
	// Executor runs the generated SQL. Defaults to an executor on DB.
	Executor Executor
	// If AuthorizationEnabled is true, all routes require an authorization
	// for the addressed application in the request context.
	AuthorizationEnabled bool
	// If UpdateSchema is true, the database tables and functions are
	// created or updated at startup.
	UpdateSchema bool
}

// New realizes the actual backend. It creates the sql tables (if they
// do not exist) and adds the routes to the router.
func New(bb *Builder) *Backend {
	if bb.DB == nil {
		panic("DB is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}

	validator, err := schema.NewValidator()
	if err != nil {
		panic(fmt.Errorf("cannot load builtin schemas: %s", err))
	}

	b := &Backend{
		db:                   bb.DB,
		router:               bb.Router,
		notifier:             bb.Notifier,
		executor:             bb.Executor,
		validator:            validator,
		schemaRegistry:       registry.New(bb.DB).Accessor("schema"),
		authorizationEnabled: bb.AuthorizationEnabled,
	}
	if b.executor == nil {
		b.executor = NewExecutor(bb.DB)
	}

	if bb.UpdateSchema {
		if err := b.updateStorageSchema(); err != nil {
			panic(fmt.Errorf("cannot update storage schema: %s", err))
		}
	}

	b.handleRoutes(bb.Router)
	return b
}

// updateStorageSchema creates the record store, the endpoint catalog, the
// per-(application,table) sequence counters and the fn_next_id function.
func (b *Backend) updateStorageSchema() error {
	s := b.db.Schema
	_, err := b.db.Exec(`CREATE table IF NOT EXISTS ` + s + `.records
(record_id SERIAL PRIMARY KEY,
table_name varchar NOT NULL,
value jsonb NOT NULL,
application_id INTEGER NOT NULL,
created_at timestamp NOT NULL DEFAULT now()
);
CREATE index IF NOT EXISTS records_application_table ON ` + s + `.records(application_id, table_name);
CREATE table IF NOT EXISTS ` + s + `.endpoints
(endpoint_id SERIAL PRIMARY KEY,
application_id INTEGER NOT NULL,
route varchar NOT NULL,
sql_template varchar NOT NULL,
method varchar NOT NULL
);
CREATE index IF NOT EXISTS endpoints_application ON ` + s + `.endpoints(application_id);
CREATE table IF NOT EXISTS ` + s + `.sequences
(application_id INTEGER NOT NULL,
table_name varchar NOT NULL,
last_value BIGINT NOT NULL DEFAULT 0,
PRIMARY KEY(application_id, table_name)
);`)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(`CREATE OR REPLACE FUNCTION ` + s + `.fn_next_id(app INTEGER, tbl varchar) RETURNS BIGINT AS $$
INSERT INTO ` + s + `.sequences(application_id, table_name, last_value)
VALUES(app, tbl, 1)
ON CONFLICT (application_id, table_name)
DO UPDATE SET last_value = ` + s + `.sequences.last_value + 1
RETURNING last_value;
$$ LANGUAGE sql;`)
	return err
}

// handleRoutes adds all handlers for the backend
func (b *Backend) handleRoutes(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("backend: handle routes")
	nillog.Debugln("  handle route: /applications/{application_id}/database POST")
	nillog.Debugln("  handle route: /applications/{application_id}/endpoints GET")
	nillog.Debugln("  handle route: /applications/{application_id}/records GET,POST")
	nillog.Debugln("  handle route: /applications/{application_id}/records/{record_id} GET,PUT,DELETE")
	nillog.Debugln("  handle route: /applications/{application_id}/api/... GET,POST,PUT,DELETE")

	s := router.PathPrefix("/applications/{application_id}").Subrouter()
	s.HandleFunc("/database", b.generateEndpoints).Methods(http.MethodPost)
	s.HandleFunc("/endpoints", b.listEndpoints).Methods(http.MethodGet)
	s.HandleFunc("/records", b.recordsList).Methods(http.MethodGet)
	s.HandleFunc("/records", b.recordsCreate).Methods(http.MethodPost)
	s.HandleFunc("/records/{record_id}", b.recordsGet).Methods(http.MethodGet)
	s.HandleFunc("/records/{record_id}", b.recordsUpdate).Methods(http.MethodPut)
	s.HandleFunc("/records/{record_id}", b.recordsDelete).Methods(http.MethodDelete)
	s.HandleFunc("/api/{route:.*}", b.executeEndpoint).
		Methods(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
}

func (b *Backend) notify(applicationID int64, table string, operation core.Operation, payload []byte) {
	if b.notifier == nil {
		return
	}
	b.notifier.Notify(applicationID, table, operation, payload)
}
