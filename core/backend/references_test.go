package backend

import (
	"context"
	"errors"
	"testing"
)

func TestIsReferenceField(t *testing.T) {
	references := []string{"cliente_id", "id_cliente", "produto_id", "id_c"}
	for _, name := range references {
		if !isReferenceField(name) {
			t.Fatalf("%s is expected to be a reference field", name)
		}
	}
	plain := []string{"id", "nome", "identidade_visual_campo", "valid"}
	for _, name := range plain {
		if isReferenceField(name) {
			t.Fatalf("%s is not expected to be a reference field", name)
		}
	}
}

func TestReferencedTable(t *testing.T) {
	cases := map[string]string{
		"cliente_id":   "clientes",
		"id_cliente":   "clientes",
		"produto_id":   "produtos",
		"usuario_id":   "usuarios",
		"categoria_id": "categorias",
		"id_c":         "clientes",
		"id_p":         "produtos",
		"pedido_id":    "pedidos",
		"status_id":    "status",
	}
	for name, want := range cases {
		if got := referencedTable(name); got != want {
			t.Fatalf("expected %s -> %s, got %s", name, want, got)
		}
	}
}

func TestValidateReferences(t *testing.T) {
	executor := &fakeExecutor{existing: map[string]map[int64]bool{
		"clientes": {42: true},
	}}
	b := &Backend{executor: executor}
	ctx := context.Background()

	// existing reference passes
	if err := b.validateReferences(ctx, 1, []byte(`{"cliente_id": 42, "total": 10}`)); err != nil {
		t.Fatalf("no error expected, got %v", err)
	}

	// dangling reference is rejected with the offending field, value and table
	err := b.validateReferences(ctx, 1, []byte(`{"cliente_id": 999}`))
	var refErr *ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected a ReferenceError, got %v", err)
	}
	if refErr.Field != "cliente_id" || refErr.Value != 999 || refErr.Table != "clientes" {
		t.Fatalf("unexpected error detail %+v", refErr)
	}
}

func TestValidateReferences_Skips(t *testing.T) {
	// none of these may trigger a lookup
	executor := &fakeExecutor{existsErr: errors.New("must not be called")}
	b := &Backend{executor: executor}
	ctx := context.Background()

	bodies := [][]byte{
		nil,
		[]byte("   "),
		[]byte(`not json`),
		[]byte(`{"id": 999}`),                // the record's own id is not a reference
		[]byte(`{"nome": "Maria"}`),          // no reference fields at all
		[]byte(`{"cliente_id": "not a id"}`), // non-numeric reference values are left alone
	}
	for _, body := range bodies {
		if err := b.validateReferences(ctx, 1, body); err != nil {
			t.Fatalf("no error expected for %s, got %v", body, err)
		}
	}
}

func TestValidateReferences_FailsOpen(t *testing.T) {
	executor := &fakeExecutor{existsErr: errors.New("connection refused")}
	b := &Backend{executor: executor}

	// a lookup error must never block the write
	if err := b.validateReferences(context.Background(), 1, []byte(`{"cliente_id": 42}`)); err != nil {
		t.Fatalf("validation is expected to fail open, got %v", err)
	}
}
