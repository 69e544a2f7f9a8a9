package bluesky

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"quake-notifier/pkg/seismic"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAlert() *seismic.Alert {
	return &seismic.Alert{
		Text:        "#Earthquake Update: A magnitude 4.2 earthquake took place 7km NW of Pasadena, CA at 2:41:36 PM. #light\nFor details from the USGS and to report shaking:",
		Description: "2024-05-01 21:41:36 (UTC) | 34.148°N -118.273°W | 11.2 km depth",
		LinkURI:     "https://earthquake.usgs.gov/earthquakes/eventpage/ci40812935",
		LinkTitle:   "M 4.2 - 7km NW of Pasadena, CA | USGS",
	}
}

func TestPublish(t *testing.T) {
	var sessionCalls, recordCalls int
	var gotAuth string
	var gotRecord createRecordRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			sessionCalls++
			var req sessionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode session request: %v", err)
			}
			if req.Identifier != "quakebot.example.com" {
				t.Errorf("identifier = %q", req.Identifier)
			}
			json.NewEncoder(w).Encode(sessionResponse{AccessJwt: "jwt-1", DID: "did:plc:abc"})
		case "/xrpc/com.atproto.repo.createRecord":
			recordCalls++
			gotAuth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&gotRecord); err != nil {
				t.Errorf("decode record request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, `{"uri":"at://did:plc:abc/app.bsky.feed.post/1","cid":"x"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := New(Config{
		Host:       ts.URL,
		Identifier: "quakebot.example.com",
		Password:   "app-password",
	}, testLogger())

	if err := client.Publish(context.Background(), testAlert()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if sessionCalls != 1 || recordCalls != 1 {
		t.Errorf("calls = %d session, %d record; want 1 each", sessionCalls, recordCalls)
	}
	if gotAuth != "Bearer jwt-1" {
		t.Errorf("Authorization = %q, want Bearer jwt-1", gotAuth)
	}
	if gotRecord.Repo != "did:plc:abc" {
		t.Errorf("repo = %q, want session did", gotRecord.Repo)
	}
	if gotRecord.Collection != "app.bsky.feed.post" {
		t.Errorf("collection = %q", gotRecord.Collection)
	}
	if gotRecord.Record.Text != testAlert().Text {
		t.Errorf("record text = %q", gotRecord.Record.Text)
	}
	if len(gotRecord.Record.Langs) != 1 || gotRecord.Record.Langs[0] != "en-US" {
		t.Errorf("langs = %v, want [en-US]", gotRecord.Record.Langs)
	}
	if gotRecord.Record.Embed == nil || gotRecord.Record.Embed.External.URI != testAlert().LinkURI {
		t.Errorf("embed = %+v, want external link embed", gotRecord.Record.Embed)
	}
	if len(gotRecord.Record.Facets) != 1 || gotRecord.Record.Facets[0].Features[0].Tag != "earthquake" {
		t.Errorf("facets = %+v, want earthquake tag facet", gotRecord.Record.Facets)
	}
}

// The session is cached across posts; only the first publish logs in.
func TestPublishReusesSession(t *testing.T) {
	var sessionCalls int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			sessionCalls++
			json.NewEncoder(w).Encode(sessionResponse{AccessJwt: "jwt-1", DID: "did:plc:abc"})
		default:
			io.WriteString(w, `{}`)
		}
	}))
	defer ts.Close()

	client := New(Config{Host: ts.URL, Identifier: "bot", Password: "pw"}, testLogger())

	for range 3 {
		if err := client.Publish(context.Background(), testAlert()); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if sessionCalls != 1 {
		t.Errorf("createSession called %d times, want 1", sessionCalls)
	}
}

// A rejected token triggers one re-login and a successful retry.
func TestPublishRefreshesRejectedSession(t *testing.T) {
	var sessionCalls, recordCalls int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			sessionCalls++
			json.NewEncoder(w).Encode(sessionResponse{AccessJwt: "jwt", DID: "did:plc:abc"})
		case "/xrpc/com.atproto.repo.createRecord":
			recordCalls++
			if recordCalls == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{}`)
		}
	}))
	defer ts.Close()

	client := New(Config{Host: ts.URL, Identifier: "bot", Password: "pw"}, testLogger())

	if err := client.Publish(context.Background(), testAlert()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if sessionCalls != 2 {
		t.Errorf("createSession called %d times, want 2 (refresh after 401)", sessionCalls)
	}
	if recordCalls != 2 {
		t.Errorf("createRecord called %d times, want 2", recordCalls)
	}
}

// Bad credentials are a hard failure, not retried.
func TestPublishAuthFailure(t *testing.T) {
	var sessionCalls int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/xrpc/com.atproto.server.createSession" {
			sessionCalls++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		t.Errorf("unexpected call to %s", r.URL.Path)
	}))
	defer ts.Close()

	client := New(Config{Host: ts.URL, Identifier: "bot", Password: "wrong"}, testLogger())

	err := client.Publish(context.Background(), testAlert())
	if err == nil {
		t.Fatal("Publish() succeeded with bad credentials")
	}
	if !seismic.IsAuthFailure(err) {
		t.Errorf("Publish() error = %v, want auth failure", err)
	}
	if sessionCalls != 1 {
		t.Errorf("createSession called %d times, want 1 (auth failures are not retried)", sessionCalls)
	}
}
