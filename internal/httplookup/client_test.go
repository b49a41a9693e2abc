package httplookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const lookupResponse = `{
	"dictionaryEntries": [
		{
			"headwords": [{"term": "猫", "reading": "ねこ", "wordClasses": ["n"]}],
			"definitions": [
				{"dictionary": "TestDict", "entries": ["cat"]},
				{"dictionary": "TestDict", "entries": [
					{"type": "structured-content", "content": {"tag": "div", "content": "feline & friend"}}
				]}
			]
		},
		{
			"headwords": [],
			"definitions": [{"dictionary": "TestDict", "entries": ["orphan"]}]
		}
	]
}`

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second)
}

// TestLookup_ConvertsEntries verifies headword, word-class, plain and
// structured-content definition handling, and that entries without
// headwords are dropped.
func TestLookup_ConvertsEntries(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/termEntries" {
			t.Errorf("path = %q, want /termEntries", r.URL.Path)
		}
		w.Write([]byte(lookupResponse))
	})

	entries := client.LookupWritten("猫")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.WrittenForms[0] != "猫" || e.Readings[0] != "ねこ" {
		t.Errorf("headword = %v / %v", e.WrittenForms, e.Readings)
	}
	if e.Source != "TestDict" {
		t.Errorf("Source = %q, want TestDict", e.Source)
	}
	if len(e.Senses) != 2 {
		t.Fatalf("got %d senses, want 2", len(e.Senses))
	}
	if e.Senses[0].Glosses[0] != "cat" {
		t.Errorf("plain gloss = %q", e.Senses[0].Glosses[0])
	}
	if e.Senses[0].PartOfSpeech[0] != "n" {
		t.Errorf("part of speech = %v", e.Senses[0].PartOfSpeech)
	}
	if got := e.Senses[1].Glosses[0]; got != "<div>feline &amp; friend</div>" {
		t.Errorf("structured gloss = %q", got)
	}
}

// TestLookup_CachesResults verifies a repeated lookup within the TTL
// window answers from cache without touching the API again.
func TestLookup_CachesResults(t *testing.T) {
	calls := 0
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(lookupResponse))
	})

	first := client.LookupWritten("猫")
	second := client.LookupWritten("猫")
	if calls != 1 {
		t.Errorf("API called %d times, want 1", calls)
	}
	if len(first) != len(second) {
		t.Errorf("cached result differs: %d vs %d entries", len(first), len(second))
	}
}

// TestLookup_ServerErrorContained verifies HTTP failures collapse to
// an empty result.
func TestLookup_ServerErrorContained(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if entries := client.LookupWritten("猫"); entries != nil {
		t.Errorf("got %d entries, want none", len(entries))
	}
}

// TestLookup_UnreachableContained verifies a dead endpoint collapses
// to an empty result rather than an error.
func TestLookup_UnreachableContained(t *testing.T) {
	client := New("http://127.0.0.1:1", 100*time.Millisecond)
	if entries := client.LookupReading("ねこ"); entries != nil {
		t.Errorf("got %d entries, want none", len(entries))
	}
}

// TestCheckConnection covers the reachable and unreachable cases.
func TestCheckConnection(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/yomitanVersion" {
			t.Errorf("path = %q, want /yomitanVersion", r.URL.Path)
		}
		w.Write([]byte(`{"version": "1.0"}`))
	})
	if !client.CheckConnection(context.Background()) {
		t.Error("CheckConnection against live server = false")
	}

	dead := New("http://127.0.0.1:1", 100*time.Millisecond)
	if dead.CheckConnection(context.Background()) {
		t.Error("CheckConnection against dead endpoint = true")
	}
}

// TestMetadataLookupsReportMissing verifies the keyed metadata methods
// of the Lookuper contract report not found.
func TestMetadataLookupsReportMissing(t *testing.T) {
	client := New("http://localhost", time.Second)
	if _, ok := client.PriorityOf("猫", "ねこ"); ok {
		t.Error("PriorityOf should report not found")
	}
	if _, ok := client.FrequencyOf("猫", "ねこ"); ok {
		t.Error("FrequencyOf should report not found")
	}
}
