package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"landowebtool/internal/domain"
)

type mockTool struct {
	name string
}

func (m *mockTool) Name() string              { return m.name }
func (m *mockTool) Description() string       { return "mock" }
func (m *mockTool) Schema() domain.ToolSchema { return domain.ToolSchema{Name: m.name} }
func (m *mockTool) Execute(context.Context, json.RawMessage) (*domain.ToolResult, error) {
	return &domain.ToolResult{Content: "ok"}, nil
}

func TestRegistryBasic(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.Register(&mockTool{name: "test"}); err != nil {
		t.Fatal(err)
	}

	tool, err := reg.Get("test")
	if err != nil {
		t.Fatal(err)
	}
	if tool.Name() != "test" {
		t.Errorf("Name = %q, want %q", tool.Name(), "test")
	}

	schemas := reg.Schemas()
	if len(schemas) != 1 {
		t.Errorf("Schemas len = %d, want 1", len(schemas))
	}
}

func TestRegistryNotFound(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Get("nonexistent")
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(&mockTool{name: "dup"})
	err := reg.Register(&mockTool{name: "dup"})
	if !errors.Is(err, domain.ErrToolDuplicate) {
		t.Errorf("expected ErrToolDuplicate, got %v", err)
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(&mockTool{name: "a"})

	if err := reg.Unregister("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get("a"); !errors.Is(err, domain.ErrToolNotFound) {
		t.Errorf("tool still present after Unregister: %v", err)
	}
	if err := reg.Unregister("a"); !errors.Is(err, domain.ErrToolNotFound) {
		t.Errorf("second Unregister = %v, want ErrToolNotFound", err)
	}
	if err := reg.Register(&mockTool{name: "a"}); err != nil {
		t.Errorf("re-register after Unregister: %v", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	reg := NewRegistry(nil)
	for _, n := range []string{"scrape", "alpha", "search"} {
		reg.Register(&mockTool{name: n})
	}
	var names []string
	for _, tl := range reg.List() {
		names = append(names, tl.Name())
	}
	want := []string{"alpha", "scrape", "search"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("List order = %v, want %v", names, want)
		}
	}
}

func TestRegistryWrapsWithSchemaValidation(t *testing.T) {
	reg := NewRegistry(nopLogger())
	if err := reg.Register(NewWebSearchTool(staticSettings{}, testSerperConfig(""), nopLogger())); err != nil {
		t.Fatal(err)
	}
	tl, _ := reg.Get(SearchToolName)
	if _, ok := tl.(*SchemaValidatingTool); !ok {
		t.Fatalf("registered tool is %T, want *SchemaValidatingTool", tl)
	}

	res, err := tl.Execute(context.Background(), json.RawMessage(`{"query": 5}`))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("schema violation should fail")
	}
}
