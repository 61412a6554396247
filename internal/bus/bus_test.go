package bus

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/nats-io/nats.go"

	"travel-diaries/internal/events"
	"travel-diaries/internal/export"
)

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"":            "_",
		" person 1 ":  "person_1",
		"a.b>c*d/e":   "a_b_c_d_e",
		"pt_1_bus_17": "pt_1_bus_17",
	}
	for in, want := range tests {
		if got := subjectToken(in); got != want {
			t.Errorf("subjectToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSubject(t *testing.T) {
	r := &export.TripRecord{TripID: 1, PersonID: "p.1"}
	if got := Subject("diaries", r); got != "diaries.matsim_trips.p_1" {
		t.Fatalf("Subject() = %s", got)
	}
}

func TestEnvelopeJSON(t *testing.T) {
	r := &export.ActivityRecord{ActivityID: 4, PersonID: "p", Type: "home", X: 1}
	b, err := json.Marshal(envelope{RunID: "r", Table: r.Table(), Record: r})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got struct {
		RunID  string         `json:"run_id"`
		Table  string         `json:"table"`
		Record map[string]any `json:"record"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Table != "matsim_activities" || got.Record["activity_id"] != float64(4) || got.Record["end_time"] != nil {
		t.Fatalf("envelope = %s", b)
	}
}

func TestDecodeEvents(t *testing.T) {
	evs, err := decodeEvents([]byte(`{"time":10,"type":"actend","person":"p","actType":"home","link":"l1"}`))
	if err != nil || len(evs) != 1 {
		t.Fatalf("decodeEvents() = %v, %v", evs, err)
	}
	if evs[0].Type != events.ActivityEnd || evs[0].ActType != "home" || evs[0].Time != 10 {
		t.Fatalf("event = %+v", evs[0])
	}
	evs, err = decodeEvents([]byte(` [{"time":1,"type":"departure","person":"p","legMode":"car"},{"time":2,"type":"left link","vehicle":"v","link":"l"}]`))
	if err != nil || len(evs) != 2 || evs[1].Vehicle != "v" {
		t.Fatalf("decodeEvents(array) = %v, %v", evs, err)
	}
	if _, err := decodeEvents([]byte("  ")); err == nil {
		t.Fatal("expected error for empty message")
	}
	if _, err := decodeEvents([]byte("{nope")); err == nil {
		t.Fatal("expected error for bad json")
	}
}

func TestControlError(t *testing.T) {
	if err := controlError([]byte("END\n")); !errors.Is(err, io.EOF) {
		t.Fatalf("end: %v", err)
	}
	if err := controlError([]byte("reset")); !errors.Is(err, events.ErrIterationEnd) {
		t.Fatalf("reset: %v", err)
	}
	if err := controlError([]byte("pause")); err != nil {
		t.Fatalf("unknown: %v", err)
	}
}

func TestSubscriberSlowConsumerMarksLossy(t *testing.T) {
	s := &Subscriber{subject: "matsim.events"}
	s.asyncError(nil, nil, nats.ErrMaxPayload)
	if s.Lossy() {
		t.Fatal("unrelated async error marked the run lossy")
	}
	s.asyncError(nil, &nats.Subscription{Subject: "matsim.events"}, nats.ErrSlowConsumer)
	if !s.Lossy() {
		t.Fatal("slow consumer error not recorded")
	}
	if s.Dropped() != 0 {
		t.Fatalf("Dropped() = %d without subscriptions", s.Dropped())
	}
}
