package io

import (
	"bytes"
	"strings"
	"testing"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/layout"
)

func sampleModel(t *testing.T) *layout.Model {
	t.Helper()
	m, err := layout.New(50, 40, 1)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	m.Capacity = 2
	comps := []layout.Component{
		{ID: "alu", Width: 10, Height: 8, X: 2, Y: 3},
		{ID: "rom", Width: 6, Height: 6, X: 20, Y: 10, Fixed: true},
	}
	for _, c := range comps {
		if err := m.AddComponent(c); err != nil {
			t.Fatalf("AddComponent error: %v", err)
		}
	}
	n := layout.Net{
		ID:     "bus",
		Weight: 2,
		Pins:   []layout.Pin{{Component: "alu", DX: 1, DY: 1}, {Component: "rom"}},
	}
	if err := m.AddNet(n); err != nil {
		t.Fatalf("AddNet error: %v", err)
	}
	return m
}

func TestDesignRoundTrip(t *testing.T) {
	m := sampleModel(t)

	var buf bytes.Buffer
	if err := WriteDesign(m, &buf); err != nil {
		t.Fatalf("WriteDesign error: %v", err)
	}

	got, err := ReadDesign(&buf)
	if err != nil {
		t.Fatalf("ReadDesign error: %v", err)
	}

	if got.Fingerprint() != m.Fingerprint() {
		t.Error("round-tripped model should have the same fingerprint")
	}
	if got.Capacity != 2 {
		t.Errorf("capacity not preserved: %d", got.Capacity)
	}
	rom := got.Component("rom")
	if rom == nil || !rom.Fixed {
		t.Error("fixed flag not preserved")
	}
	if got.Net("bus") == nil || got.Net("bus").Weight != 2 {
		t.Error("net weight not preserved")
	}
}

func TestReadDesignMalformedJSON(t *testing.T) {
	if _, err := ReadDesign(strings.NewReader("{not json")); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestReadDesignUnknownPinComponent(t *testing.T) {
	doc := `{
		"width": 10, "height": 10, "cell_size": 1,
		"components": [{"id": "a", "width": 2, "height": 2}],
		"nets": [{"id": "n", "pins": [{"component": "ghost"}]}]
	}`
	if _, err := ReadDesign(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for pin on unknown component")
	}
}

func TestReadDesignDuplicateComponent(t *testing.T) {
	doc := `{
		"width": 10, "height": 10, "cell_size": 1,
		"components": [
			{"id": "a", "width": 2, "height": 2},
			{"id": "a", "width": 3, "height": 3}
		],
		"nets": []
	}`
	if _, err := ReadDesign(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for duplicate component id")
	}
}

func TestExportImportDesignFile(t *testing.T) {
	m := sampleModel(t)
	path := t.TempDir() + "/design.json"

	if err := ExportDesign(m, path); err != nil {
		t.Fatalf("ExportDesign error: %v", err)
	}
	got, err := ImportDesign(path)
	if err != nil {
		t.Fatalf("ImportDesign error: %v", err)
	}
	if got.ComponentCount() != 2 || got.NetCount() != 1 {
		t.Errorf("unexpected counts: %d components, %d nets", got.ComponentCount(), got.NetCount())
	}
}
