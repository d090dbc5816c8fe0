package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUpsertProgressRequestShape(t *testing.T) {
	var got progressRow
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != progressPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "anon-key", time.Second)
	at := time.Date(2025, 12, 24, 18, 0, 0, 0, time.UTC)
	if err := c.UpsertProgress(context.Background(), "42", map[string]any{"coins": 12.5}, at); err != nil {
		t.Fatalf("upsert progress: %v", err)
	}

	if got.UserID != "42" {
		t.Fatalf("expected user_id 42, got %q", got.UserID)
	}
	if got.UpdatedAt != "2025-12-24T18:00:00Z" {
		t.Fatalf("unexpected updated_at %q", got.UpdatedAt)
	}
	var data map[string]float64
	if err := json.Unmarshal(got.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["coins"] != 12.5 {
		t.Fatalf("expected coins 12.5, got %v", data["coins"])
	}
	if headers.Get("apikey") != "anon-key" {
		t.Fatalf("missing apikey header")
	}
	if headers.Get("Authorization") != "Bearer anon-key" {
		t.Fatalf("unexpected authorization %q", headers.Get("Authorization"))
	}
	if headers.Get("Prefer") != preferMerge {
		t.Fatalf("unexpected prefer %q", headers.Get("Prefer"))
	}
}

func TestFetchUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != usersPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("id") != "eq.7" || r.URL.Query().Get("select") != "*" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		io.WriteString(w, `[{"id":"7","username":"elf","display_name":"Elf","photo_url":null,"badges":["Rookie"],"season":"Winter 2025","achievements":"1/30"}]`)
	}))
	defer srv.Close()

	user, err := New(srv.URL, "k", 0).FetchUser(context.Background(), "7")
	if err != nil {
		t.Fatalf("fetch user: %v", err)
	}
	if user == nil || user.DisplayName != "Elf" || len(user.Badges) != 1 {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Username == nil || *user.Username != "elf" {
		t.Fatalf("unexpected username %v", user.Username)
	}
}

func TestFetchUserAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	user, err := New(srv.URL, "k", 0).FetchUser(context.Background(), "7")
	if err != nil {
		t.Fatalf("fetch user: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}

func TestFetchProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "eq.9" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		io.WriteString(w, `[{"data":{"coins":3}}]`)
	}))
	defer srv.Close()

	raw, err := New(srv.URL, "k", 0).FetchProgress(context.Background(), "9")
	if err != nil {
		t.Fatalf("fetch progress: %v", err)
	}
	if string(raw) != `{"coins":3}` {
		t.Fatalf("unexpected data %s", raw)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(srv.URL, "k", 0).UpsertUser(context.Background(), UserRecord{ID: "1"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusUnauthorized || statusErr.Body != "denied" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}
