package firehose

import (
	"encoding/json"
	"testing"

	"dcbridge/internal/events"
	"dcbridge/pkg/logging"
)

func TestRecordShape(t *testing.T) {
	ev := events.New(events.DownloadComplete{Target: "/dl/a.bin", Nick: "seeder", Size: 1024})
	rec, err := Record("dc_events", ev)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Topic != "dc_events" {
		t.Fatalf("unexpected topic %q", rec.Topic)
	}
	if string(rec.Key) != "download_complete" {
		t.Fatalf("records must be keyed by kind, got %q", rec.Key)
	}

	var wire struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Value, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Event != "download_complete" || wire.Data["target"] != "/dl/a.bin" {
		t.Fatalf("unexpected wire value %+v", wire)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	logger := logging.NewLogger()
	if _, err := New(Config{Topic: "t"}, logger, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := New(Config{Brokers: []string{"localhost:9092"}}, logger, nil); err == nil {
		t.Fatalf("expected error without topic")
	}
}
