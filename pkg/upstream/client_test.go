package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"mercator-hq/relay/internal/upstreamtest"
)

func newTestRequest() *Request {
	return &Request{
		Model:            "gpt-4o",
		Messages:         []json.RawMessage{json.RawMessage(`{"role":"user","content":"hi"}`)},
		MaxTokens:        800,
		Temperature:      0.5,
		FrequencyPenalty: 0.8,
	}
}

func TestComplete_Success(t *testing.T) {
	fake := upstreamtest.NewServer()
	defer fake.Close()
	fake.SetResponse(upstreamtest.Response{
		Body: "{\n  \"choices\": [ {\"message\": {\"content\": \"hello\"}} ]\n}\n",
	})

	client, err := NewClient(Config{Endpoint: fake.URL()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	resp, err := client.Complete(context.Background(), "sk-secret", newTestRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if got, want := string(resp.Body), `{"choices":[{"message":{"content":"hello"}}]}`; got != want {
		t.Errorf("body = %s, want %s", got, want)
	}

	got, ok := fake.LastRequest()
	if !ok {
		t.Fatal("upstream received no request")
	}
	if got.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", got.Method)
	}
	if got.Authorization != "Bearer sk-secret" {
		t.Errorf("unexpected Authorization %q", got.Authorization)
	}
	if got.ContentType != "application/json" {
		t.Errorf("unexpected Content-Type %q", got.ContentType)
	}

	var sent map[string]json.RawMessage
	if err := json.Unmarshal(got.Body, &sent); err != nil {
		t.Fatalf("upstream body not JSON: %v", err)
	}
	for _, key := range []string{"model", "messages", "max_tokens", "temperature", "frequency_penalty"} {
		if _, ok := sent[key]; !ok {
			t.Errorf("upstream body missing %q", key)
		}
	}
	if len(sent) != 5 {
		t.Errorf("expected exactly 5 fields, got %d", len(sent))
	}
	if string(sent["messages"]) != `[{"role":"user","content":"hi"}]` {
		t.Errorf("messages not passed through: %s", sent["messages"])
	}
}

func TestComplete_NonSuccessStatusIsNotAnError(t *testing.T) {
	fake := upstreamtest.NewServer()
	defer fake.Close()
	fake.SetResponse(upstreamtest.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":{"message":"Incorrect API key"}}`,
	})

	client, _ := NewClient(Config{Endpoint: fake.URL()})

	resp, err := client.Complete(context.Background(), "sk-bad", newTestRequest())
	if err != nil {
		t.Fatalf("expected JSON error body to be returned, got %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestComplete_InvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"html", "<html>bad gateway</html>"},
		{"empty", ""},
		{"truncated", `{"choices":[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := upstreamtest.NewServer()
			defer fake.Close()
			fake.SetResponse(upstreamtest.Response{StatusCode: http.StatusBadGateway, Body: tt.body})

			client, _ := NewClient(Config{Endpoint: fake.URL()})
			_, err := client.Complete(context.Background(), "sk-secret", newTestRequest())

			var invalid *InvalidResponseError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidResponseError, got %v", err)
			}
			if invalid.StatusCode != http.StatusBadGateway {
				t.Errorf("expected status 502 on error, got %d", invalid.StatusCode)
			}
		})
	}
}

func TestComplete_ResponseTooLarge(t *testing.T) {
	fake := upstreamtest.NewServer()
	defer fake.Close()
	fake.SetResponse(upstreamtest.Response{Body: `{"padding":"` + strings.Repeat("x", 256) + `"}`})

	client, _ := NewClient(Config{Endpoint: fake.URL(), MaxResponseBytes: 64})
	_, err := client.Complete(context.Background(), "sk-secret", newTestRequest())

	var invalid *InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidResponseError, got %v", err)
	}
}

func TestComplete_Unreachable(t *testing.T) {
	fake := upstreamtest.NewServer()
	endpoint := fake.URL()
	fake.Close()

	client, _ := NewClient(Config{Endpoint: endpoint})
	_, err := client.Complete(context.Background(), "sk-secret-value", newTestRequest())

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected UnreachableError, got %v", err)
	}
	if strings.Contains(err.Error(), "sk-secret-value") {
		t.Error("error message leaks the credential")
	}
}

func TestComplete_Timeout(t *testing.T) {
	fake := upstreamtest.NewServer()
	defer fake.Close()
	fake.SetResponse(upstreamtest.Response{Body: `{}`, Delay: 2 * time.Second})

	client, _ := NewClient(Config{Endpoint: fake.URL(), Timeout: 50 * time.Millisecond})
	_, err := client.Complete(context.Background(), "sk-secret", newTestRequest())

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected UnreachableError on timeout, got %v", err)
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	fake := upstreamtest.NewServer()
	defer fake.Close()
	fake.SetResponse(upstreamtest.Response{Body: `{}`, Delay: 2 * time.Second})

	client, _ := NewClient(Config{Endpoint: fake.URL()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "sk-secret", newTestRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestComplete_SingleAttempt(t *testing.T) {
	fake := upstreamtest.NewServer()
	defer fake.Close()
	fake.SetResponse(upstreamtest.Response{StatusCode: http.StatusServiceUnavailable, Body: "overloaded"})

	client, _ := NewClient(Config{Endpoint: fake.URL()})
	_, _ = client.Complete(context.Background(), "sk-secret", newTestRequest())

	if n := fake.RequestCount(); n != 1 {
		t.Errorf("expected exactly one upstream attempt, got %d", n)
	}
}

func TestNewClient_EmptyEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
