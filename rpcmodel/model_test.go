package rpcmodel

import (
	"encoding/json"
	"testing"
)

func TestNewResultMarshalsResponse(t *testing.T) {
	resp, err := NewResult(json.RawMessage(`1`), map[string]int{"height": 5})
	if err != nil {
		t.Fatalf("new result: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("expected no error on success response")
	}
	var decoded map[string]int
	if err := json.Unmarshal(resp.Result, &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded["height"] != 5 {
		t.Fatalf("expected height 5, got %d", decoded["height"])
	}
}

func TestAdmissionErrorCodeOffsetsStably(t *testing.T) {
	if got := AdmissionErrorCode(0); got != AdmissionCodeBase {
		t.Fatalf("expected code 0 to map to base, got %d", got)
	}
	if got := AdmissionErrorCode(3); got != AdmissionCodeBase-3 {
		t.Fatalf("expected offset of 3, got %d", got)
	}
}
