package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apierrors "github.com/lmarques/tutorchat/internal/errors"
	"github.com/lmarques/tutorchat/internal/models"
)

func jsonHandler(t *testing.T, wantMethod, wantPath, body string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != wantMethod || r.URL.Path != wantPath {
			t.Errorf("request = %s %s, want %s %s", r.Method, r.URL.Path, wantMethod, wantPath)
		}
		_, _ = w.Write([]byte(body))
	}
}

func TestListConversations(t *testing.T) {
	body := `[
		{"chat_id":"c2","summary":"Newest","updated_at":"2026-08-27T10:00:00Z","is_assignment_chat":true},
		{"chat_id":"c1","summary":"Older","updated_at":"2026-08-20T10:00:00Z"}
	]`
	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/conversations", body), StaticTokenSource("t"))

	got, err := client.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d conversations", len(got))
	}
	if got[0].ChatID != "c2" || got[0].Summary != "Newest" || !got[0].IsAssignmentChat {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[0].UpdatedAt.IsZero() {
		t.Error("updated_at not parsed")
	}
}

func TestListConversationsRejectsNonArray(t *testing.T) {
	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/conversations", `{"detail":"nope"}`), StaticTokenSource("t"))

	_, err := client.ListConversations(context.Background())
	var parseErr *apierrors.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("err = %v, want ParseError", err)
	}
}

func TestSendMessageShapes(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantChatID  string
		wantReply   string
		wantHistory int
	}{
		{
			"reply only",
			`{"chat_id":"c1","response":"the answer"}`,
			"c1", "the answer", 0,
		},
		{
			"full history",
			`{"chat_id":"c1","response":"the answer","history":[
				{"role":"user","content":"q"},
				{"role":"assistant","content":"the answer"}
			]}`,
			"c1", "the answer", 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, jsonHandler(t, http.MethodPost, "/chat", tt.body), StaticTokenSource("t"))

			result, err := client.SendMessage(context.Background(), "c1", "q")
			if err != nil {
				t.Fatalf("SendMessage failed: %v", err)
			}
			if result.ChatID != tt.wantChatID || result.Reply != tt.wantReply {
				t.Errorf("result = %+v", result)
			}
			if len(result.History) != tt.wantHistory {
				t.Errorf("history length = %d, want %d", len(result.History), tt.wantHistory)
			}
		})
	}
}

func TestSendMessageChatIDPayload(t *testing.T) {
	var gotBody string
	handler := func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		_, _ = w.Write([]byte(`{"chat_id":"c1","response":"ok"}`))
	}

	t.Run("existing chat", func(t *testing.T) {
		client := newTestClient(t, handler, StaticTokenSource("t"))
		if _, err := client.SendMessage(context.Background(), "c1", "hello"); err != nil {
			t.Fatal(err)
		}
		if gotBody != `{"message":"hello","chat_id":"c1"}` {
			t.Errorf("payload = %s", gotBody)
		}
	})

	t.Run("implicit new chat sends null id", func(t *testing.T) {
		client := newTestClient(t, handler, StaticTokenSource("t"))
		if _, err := client.SendMessage(context.Background(), "", "hello"); err != nil {
			t.Fatal(err)
		}
		if gotBody != `{"message":"hello","chat_id":null}` {
			t.Errorf("payload = %s", gotBody)
		}
	})
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for an empty message")
	}, StaticTokenSource("t"))

	_, err := client.SendMessage(context.Background(), "", "   ")
	if !errors.Is(err, apierrors.ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestStartChat(t *testing.T) {
	body := `{"chat_id":"fresh","history":[{"role":"assistant","content":"Welcome!"}]}`
	client := newTestClient(t, jsonHandler(t, http.MethodPost, "/chat/start", body), StaticTokenSource("t"))

	result, err := client.StartChat(context.Background())
	if err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	if result.ChatID != "fresh" || len(result.History) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestStartChatRequiresChatID(t *testing.T) {
	client := newTestClient(t, jsonHandler(t, http.MethodPost, "/chat/start", `{}`), StaticTokenSource("t"))

	if _, err := client.StartChat(context.Background()); err == nil {
		t.Error("StartChat without chat_id succeeded")
	}
}

func TestConversationShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]`},
		{"wrapper object", `{"chat_id":"c1","messages":[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, jsonHandler(t, http.MethodGet, "/conversation/c1", tt.body), StaticTokenSource("t"))

			msgs, err := client.Conversation(context.Background(), "c1")
			if err != nil {
				t.Fatalf("Conversation failed: %v", err)
			}
			if len(msgs) != 2 || msgs[0].Role != models.RoleUser {
				t.Errorf("messages = %v", msgs)
			}
		})
	}
}

func TestConversationSkipsUnknownRoles(t *testing.T) {
	body := `[
		{"role":"user","content":"q"},
		{"role":"tool","content":"internal"},
		{"role":"assistant","content":"a"}
	]`
	client := newTestClient(t, jsonHandler(t, http.MethodGet, "/conversation/c1", body), StaticTokenSource("t"))

	msgs, err := client.Conversation(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want unknown role dropped", len(msgs))
	}
}

func TestConversationNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Conversation not found"}`))
	}))
	t.Cleanup(server.Close)

	client, _ := NewClient(server.URL, StaticTokenSource("t"))
	_, err := client.Conversation(context.Background(), "missing")
	if !errors.Is(err, apierrors.ErrConversationNotFound) {
		t.Errorf("err = %v, want ErrConversationNotFound", err)
	}
}

func TestDeleteConversation(t *testing.T) {
	client := newTestClient(t, jsonHandler(t, http.MethodPut, "/conversation/c1/delete", `{"status":"deleted"}`), StaticTokenSource("t"))

	if err := client.DeleteConversation(context.Background(), "c1"); err != nil {
		t.Errorf("DeleteConversation failed: %v", err)
	}
	if err := client.DeleteConversation(context.Background(), ""); !errors.Is(err, apierrors.ErrConversationNotFound) {
		t.Errorf("empty id err = %v", err)
	}
}
