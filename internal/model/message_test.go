package model

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestAddTypesSkipsDuplicates(t *testing.T) {
	t.Parallel()
	m := &Message{Types: []string{TypeLogWrite}}
	m.AddTypes(TypeLogCount, TypeLogWrite, TypeLogCount)
	if want := []string{TypeLogWrite, TypeLogCount}; !slices.Equal(m.Types, want) {
		t.Errorf("Types = %v, want %v", m.Types, want)
	}
	if !m.HasType(TypeLogCount) || m.HasType(TypeCallStack) {
		t.Errorf("HasType mismatch for %v", m.Types)
	}
}

func TestMessageWireShape(t *testing.T) {
	t.Parallel()
	m := Message{
		ID:      "m1",
		Ordinal: 3,
		Types:   []string{TypeHTTPRequest},
		Payload: `{"id":"r1"}`,
		Context: Context{ID: "ctx", Type: "request"},
		Offset:  12.5,
		Agent:   Agent{Source: "pageprobe"},
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"id":"m1","ordinal":3,"types":["data-http-request"],"payload":"{\"id\":\"r1\"}","context":{"id":"ctx","type":"request"},"offset":12.5,"agent":{"source":"pageprobe"}}`
	if string(raw) != want {
		t.Errorf("Marshal = %s\nwant      %s", raw, want)
	}
}
