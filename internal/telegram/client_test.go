package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	c := NewClient("test-token", zap.NewNop())
	c.baseURL = url
	return c
}

func TestSendMessage_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("path = %s, want sendMessage", r.URL.Path)
		}
		if !strings.Contains(r.URL.Path, "bottest-token") {
			t.Errorf("path %s missing token", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.SendMessage(context.Background(), -100123, 7, "<b>hi</b>"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if got["chat_id"].(float64) != -100123 {
		t.Errorf("chat_id = %v", got["chat_id"])
	}
	if got["message_thread_id"].(float64) != 7 {
		t.Errorf("message_thread_id = %v", got["message_thread_id"])
	}
	if got["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v", got["parse_mode"])
	}
}

func TestSendMessage_NoThreadIDForMainThread(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.SendMessage(context.Background(), 1, 0, "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, ok := got["message_thread_id"]; ok {
		t.Error("message_thread_id sent for main thread")
	}
}

func TestSendMessage_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"ok":false,"error_code":502,"description":"bad gateway"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.SendMessage(context.Background(), 1, 0, "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestSendMessage_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	start := time.Now()
	if err := c.SendMessage(context.Background(), 1, 0, "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("retried after %s, want >= retry_after of 1s", elapsed)
	}
}

func TestSendMessage_BoundedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ok":false,"error_code":500,"description":"internal error"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.SendMessage(context.Background(), 1, 0, "hi")
	if err == nil {
		t.Fatal("SendMessage succeeded, want error")
	}
	if !strings.Contains(err.Error(), "internal error") {
		t.Errorf("err = %v, want underlying description", err)
	}
	if calls.Load() != maxSendRetries {
		t.Errorf("calls = %d, want %d", calls.Load(), maxSendRetries)
	}
}

func TestSendMessage_PermanentErrorFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.SendMessage(context.Background(), 1, 0, "hi")
	if err == nil {
		t.Fatal("SendMessage succeeded, want error")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("err = %v, want underlying description", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on a rejected request)", calls.Load())
	}
}

func TestSendMessage_ContextCancelStopsRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":500,"description":"boom"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := newTestClient(srv.URL)
	start := time.Now()
	if err := c.SendMessage(ctx, 1, 0, "hi"); err == nil {
		t.Fatal("SendMessage succeeded, want error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("retry loop outlived the context")
	}
}

func TestGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["offset"].(float64) != 42 {
			t.Errorf("offset = %v, want 42", payload["offset"])
		}
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":42,"message":{"message_id":1,"text":"/servers","chat":{"id":-100123,"type":"supergroup"},"from":{"id":7,"username":"admin"}}}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	updates, err := c.GetUpdates(context.Background(), 42, 30)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]
	if u.UpdateID != 42 || u.Message == nil || u.Message.Text != "/servers" {
		t.Errorf("unexpected update: %+v", u)
	}
	if u.Message.From.ID != 7 {
		t.Errorf("from.id = %d, want 7", u.Message.From.ID)
	}
}
