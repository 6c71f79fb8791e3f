package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}

func testClient(serverToken string, target *httptest.Server) *Client {
	return NewClient(serverToken, "alerts@webwatch.test", WithHTTPClient(&http.Client{
		Transport: &rewriteTransport{base: http.DefaultTransport, target: target.URL},
	}))
}

func TestSendDowntimeAlert(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := testClient("test-token", server)
	if err := client.SendDowntimeAlert("alice@example.com", "My Blog", "https://blog.example.com"); err != nil {
		t.Fatalf("send downtime alert: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "alerts@webwatch.test" {
		t.Errorf("From = %q, want %q", received.From, "alerts@webwatch.test")
	}
	if received.Subject != "My Blog is down" {
		t.Errorf("Subject = %q, want %q", received.Subject, "My Blog is down")
	}
	if !strings.Contains(received.TextBody, "https://blog.example.com") {
		t.Errorf("text body missing site URL: %q", received.TextBody)
	}
}

func TestSendWelcome(t *testing.T) {
	var received postmarkEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := testClient("test-token", server)
	if err := client.SendWelcome("bob@example.com", "Bob"); err != nil {
		t.Fatalf("send welcome: %v", err)
	}

	if received.Subject != "Welcome to Webwatch" {
		t.Errorf("Subject = %q, want welcome subject", received.Subject)
	}
	if !strings.Contains(received.TextBody, "Bob") {
		t.Errorf("text body missing name: %q", received.TextBody)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "alerts@webwatch.test")
	if err := client.SendWelcome("alice@example.com", "Alice"); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := testClient("test-token", server)
	if err := client.SendDowntimeAlert("alice@example.com", "My Blog", "https://blog.example.com"); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestConfigured(t *testing.T) {
	if !NewClient("token", "from@test.com").Configured() {
		t.Error("expected Configured() = true")
	}
	if NewClient("", "from@test.com").Configured() {
		t.Error("expected Configured() = false")
	}
}
