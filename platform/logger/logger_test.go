package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWithGroupIDAddsFlatAttribute(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.WithLead("lead-1").WithGroupID("group-1").Info("claimed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["group_id"] != "group-1" || entry["lead_id"] != "lead-1" {
		t.Fatalf("expected lead_id and group_id attributes, got %v", entry)
	}
}

func TestSlogWithGroupStillNamespacesAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.WithGroup("req").Info("handled", "status", 200)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	nested, ok := entry["req"].(map[string]any)
	if !ok || nested["status"] != float64(200) {
		t.Fatalf("expected status nested under req, got %v", entry)
	}
}
