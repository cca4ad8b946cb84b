package backend

import (
	"net/http"
	"testing"
)

func TestMatchRoute(t *testing.T) {
	endpoints := []Endpoint{
		{Route: "/clientes", Method: http.MethodGet, SQLTemplate: "list"},
		{Route: "/clientes/{id}", Method: http.MethodGet, SQLTemplate: "get"},
		{Route: "/clientes/{id}/pedidos/{pedido_id}", Method: http.MethodGet, SQLTemplate: "nested"},
	}

	e, params, found := MatchRoute(http.MethodGet, "/clientes", endpoints)
	if !found || e.SQLTemplate != "list" {
		t.Fatalf("expected the list endpoint, got %v found=%v", e, found)
	}
	if len(params) != 0 {
		t.Fatalf("expected no path parameters, got %v", params)
	}

	e, params, found = MatchRoute(http.MethodGet, "/clientes/42", endpoints)
	if !found || e.SQLTemplate != "get" {
		t.Fatalf("expected the get endpoint, got %v found=%v", e, found)
	}
	if params["id"] != "42" {
		t.Fatalf("expected id=42, got %v", params)
	}

	_, params, found = MatchRoute(http.MethodGet, "/clientes/42/pedidos/7", endpoints)
	if !found {
		t.Fatal("expected the nested endpoint to match")
	}
	if params["id"] != "42" || params["pedido_id"] != "7" {
		t.Fatalf("unexpected bindings %v", params)
	}
}

func TestMatchRoute_NoMatch(t *testing.T) {
	endpoints := []Endpoint{
		{Route: "/clientes/{id}", Method: http.MethodGet},
	}

	// a parameter never spans a path segment
	if _, _, found := MatchRoute(http.MethodGet, "/clientes/42/pedidos", endpoints); found {
		t.Fatal("/clientes/42/pedidos is not expected to match /clientes/{id}")
	}
	// method mismatch
	if _, _, found := MatchRoute(http.MethodDelete, "/clientes/42", endpoints); found {
		t.Fatal("DELETE is not expected to match a GET endpoint")
	}
	// unknown route
	if _, _, found := MatchRoute(http.MethodGet, "/produtos/42", endpoints); found {
		t.Fatal("/produtos/42 is not expected to match")
	}
}

func TestMatchRoute_FirstMatchWins(t *testing.T) {
	endpoints := []Endpoint{
		{Route: "/clientes/{id}", Method: http.MethodGet, SQLTemplate: "first"},
		{Route: "/clientes/vip", Method: http.MethodGet, SQLTemplate: "second"},
	}
	// the parameterized route was stored first, so it shadows the literal one
	e, params, found := MatchRoute(http.MethodGet, "/clientes/vip", endpoints)
	if !found || e.SQLTemplate != "first" {
		t.Fatalf("expected the first stored endpoint to win, got %v", e)
	}
	if params["id"] != "vip" {
		t.Fatalf("expected id=vip, got %v", params)
	}
}
