package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"webwatch/internal/database"
	"webwatch/internal/email"
	"webwatch/internal/middleware"
	"webwatch/internal/probe"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	srv := New(db, email.NewClient("", ""), Config{
		JWTSecret: []byte("test-secret"),
		Probe:     probe.Config{},
	}, logger)
	return srv.Router()
}

// targetSite serves a small healthy page for probes to hit.
func targetSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>ok</title></head><body><h1>ok</h1></body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.9:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func issueToken(t *testing.T, router http.Handler) string {
	t.Helper()
	rec, env := doJSON(t, router, "POST", "/visitor/token", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue token status = %d: %v", rec.Code, env)
	}
	data := env["data"].(map[string]any)
	return data["token"].(string)
}

func signup(t *testing.T, router http.Handler, email string, headers map[string]string) (string, map[string]any) {
	t.Helper()
	if headers == nil {
		headers = map[string]string{}
	}
	rec, env := doJSON(t, router, "POST", "/user/signup", map[string]string{
		"name":     "Alice",
		"email":    email,
		"password": "hunter2hunter2",
	}, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %v", rec.Code, env)
	}
	data := env["data"].(map[string]any)
	return data["access_token"].(string), data
}

func TestHealthEndpoint(t *testing.T) {
	router := setupRouter(t)
	rec, env := doJSON(t, router, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env["status"] != "ok" {
		t.Errorf("body = %v", env)
	}
}

func TestIssueAndValidateVisitorToken(t *testing.T) {
	router := setupRouter(t)
	token := issueToken(t, router)

	rec, env := doJSON(t, router, "GET", "/visitor/token/"+token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d: %v", rec.Code, env)
	}
	data := env["data"].(map[string]any)
	if data["status"] != "anonymous" {
		t.Errorf("token status = %v, want anonymous", data["status"])
	}

	rec, _ = doJSON(t, router, "GET", "/visitor/token/bogus", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("bogus token status = %d, want 404", rec.Code)
	}
}

func TestVisitorTokenIssuanceRateLimit(t *testing.T) {
	router := setupRouter(t)

	for i := 0; i < 5; i++ {
		rec, _ := doJSON(t, router, "POST", "/visitor/token", nil, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("issue %d status = %d", i+1, rec.Code)
		}
	}
	rec, _ := doJSON(t, router, "POST", "/visitor/token", nil, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("sixth issue status = %d, want 429", rec.Code)
	}
}

func TestGuestWebsiteLifecycle(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)
	token := issueToken(t, router)
	headers := map[string]string{middleware.VisitorTokenHeader: token}

	// Create under the token
	rec, env := doJSON(t, router, "POST", "/guest", map[string]string{"url": site.URL, "name": "My Site"}, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("guest create status = %d: %v", rec.Code, env)
	}
	created := env["data"].(map[string]any)
	id := created["id"].(string)
	if created["owner_status"] != "guest" {
		t.Errorf("owner_status = %v, want guest", created["owner_status"])
	}
	if created["status"] != "online" {
		t.Errorf("status = %v, want online", created["status"])
	}

	// Duplicate URL for the same token
	rec, _ = doJSON(t, router, "POST", "/guest", map[string]string{"url": site.URL}, headers)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate guest create status = %d, want 422", rec.Code)
	}

	// List
	rec, env = doJSON(t, router, "GET", "/guest/websites", nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest list status = %d", rec.Code)
	}
	sites := env["data"].([]any)
	if len(sites) != 1 {
		t.Fatalf("guest owns %d sites, want 1", len(sites))
	}

	// Recheck with the visitor identity
	rec, env = doJSON(t, router, "POST", "/website/"+id+"/recheck", nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("recheck status = %d: %v", rec.Code, env)
	}

	// Delete
	rec, _ = doJSON(t, router, "DELETE", "/guest/website/"+id, nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest delete status = %d", rec.Code)
	}
	rec, env = doJSON(t, router, "GET", "/guest/websites", nil, headers)
	if got := env["data"].([]any); len(got) != 0 {
		t.Errorf("guest owns %d sites after delete, want 0", len(got))
	}
	_ = rec
}

func TestGuestProbeWithoutTokenDoesNotPersist(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)

	rec, env := doJSON(t, router, "POST", "/guest", map[string]string{"url": site.URL}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous probe status = %d: %v", rec.Code, env)
	}
	data := env["data"].(map[string]any)
	if data["status"] != "online" {
		t.Errorf("status = %v, want online", data["status"])
	}
	if _, ok := data["id"]; ok {
		t.Error("anonymous probe should not create a record")
	}
}

func TestGuestRoutesRequireToken(t *testing.T) {
	router := setupRouter(t)

	rec, _ := doJSON(t, router, "GET", "/guest/websites", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("list without token status = %d, want 400", rec.Code)
	}
}

func TestSignupClaimsVisitorToken(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)
	token := issueToken(t, router)
	guestHeaders := map[string]string{middleware.VisitorTokenHeader: token}

	rec, env := doJSON(t, router, "POST", "/guest", map[string]string{"url": site.URL, "name": "Guest Site"}, guestHeaders)
	if rec.Code != http.StatusCreated {
		t.Fatalf("guest create status = %d: %v", rec.Code, env)
	}
	guestID := env["data"].(map[string]any)["id"].(string)

	access, data := signup(t, router, "alice@example.com", guestHeaders)
	if data["websites_transferred"] != float64(1) {
		t.Errorf("websites_transferred = %v, want 1", data["websites_transferred"])
	}

	// The site now lists under the account, same id
	authHeaders := map[string]string{"Authorization": "Bearer " + access}
	rec, env = doJSON(t, router, "GET", "/website", nil, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	sites := env["data"].([]any)
	if len(sites) != 1 {
		t.Fatalf("user owns %d sites, want 1", len(sites))
	}
	moved := sites[0].(map[string]any)
	if moved["id"] != guestID {
		t.Errorf("id changed across claim: %v -> %v", guestID, moved["id"])
	}
	if moved["owner_status"] != "claimed" {
		t.Errorf("owner_status = %v, want claimed", moved["owner_status"])
	}

	// The old token no longer grants access to the site
	rec, env = doJSON(t, router, "GET", "/guest/websites", nil, guestHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest list status = %d: %v", rec.Code, env)
	}
	if got := env["data"].([]any); len(got) != 0 {
		t.Errorf("claimed token still sees %d guest sites, want 0", len(got))
	}

	// The token reads as claimed now
	rec, env = doJSON(t, router, "GET", "/visitor/token/"+token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rec.Code)
	}
	if env["data"].(map[string]any)["status"] != "claimed" {
		t.Errorf("token status = %v, want claimed", env["data"].(map[string]any)["status"])
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	router := setupRouter(t)
	signup(t, router, "alice@example.com", nil)

	rec, _ := doJSON(t, router, "POST", "/user/signup", map[string]string{
		"name":     "Alice Again",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate signup status = %d, want 422", rec.Code)
	}
}

func TestLoginAndAuthenticatedWebsiteLifecycle(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)
	signup(t, router, "alice@example.com", nil)

	rec, env := doJSON(t, router, "POST", "/user/login", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %v", rec.Code, env)
	}
	access := env["data"].(map[string]any)["access_token"].(string)
	headers := map[string]string{"Authorization": "Bearer " + access}

	rec, env = doJSON(t, router, "POST", "/website", map[string]string{"url": site.URL, "name": "Prod"}, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %v", rec.Code, env)
	}
	id := env["data"].(map[string]any)["id"].(string)
	if env["data"].(map[string]any)["owner_status"] != "active" {
		t.Errorf("owner_status = %v, want active", env["data"].(map[string]any)["owner_status"])
	}

	rec, _ = doJSON(t, router, "POST", "/website/"+id+"/recheck", nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("recheck status = %d", rec.Code)
	}

	rec, _ = doJSON(t, router, "DELETE", "/website/"+id, nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = doJSON(t, router, "DELETE", "/website/"+id, nil, headers)
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router := setupRouter(t)
	signup(t, router, "alice@example.com", nil)

	rec, _ := doJSON(t, router, "POST", "/user/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login status = %d, want 401", rec.Code)
	}
}

func TestCreateUnreachableWebsiteRejected(t *testing.T) {
	router := setupRouter(t)
	dead := targetSite(t)
	url := dead.URL
	dead.Close()

	access, _ := signup(t, router, "alice@example.com", nil)
	headers := map[string]string{"Authorization": "Bearer " + access}

	rec, _ := doJSON(t, router, "POST", "/website", map[string]string{"url": url}, headers)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unreachable create status = %d, want 422", rec.Code)
	}
}

func TestWebsiteRoutesRequireBearer(t *testing.T) {
	router := setupRouter(t)
	token := issueToken(t, router)

	// A visitor token is not a bearer credential
	rec, _ := doJSON(t, router, "GET", "/website", nil, map[string]string{middleware.VisitorTokenHeader: token})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("list with visitor token status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, router, "GET", "/website", nil, map[string]string{"Authorization": "Bearer garbage"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("list with garbage bearer status = %d, want 422", rec.Code)
	}
}

func TestMigrateEndpoint(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)
	token := issueToken(t, router)
	guestHeaders := map[string]string{middleware.VisitorTokenHeader: token}

	rec, env := doJSON(t, router, "POST", "/guest", map[string]string{"url": site.URL, "name": "Guest Site"}, guestHeaders)
	if rec.Code != http.StatusCreated {
		t.Fatalf("guest create status = %d", rec.Code)
	}
	guestID := env["data"].(map[string]any)["id"].(string)

	// Sign up without presenting the token, then migrate explicitly
	access, data := signup(t, router, "alice@example.com", nil)
	if data["websites_transferred"] != float64(0) {
		t.Errorf("websites_transferred = %v, want 0", data["websites_transferred"])
	}
	headers := map[string]string{"Authorization": "Bearer " + access}

	body := map[string]any{"websites": []map[string]string{{"id": guestID, "url": site.URL, "name": "Mine now"}}}
	rec, env = doJSON(t, router, "POST", "/migrate", body, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("migrate status = %d: %v", rec.Code, env)
	}
	result := env["data"].(map[string]any)
	if result["migrated"] != float64(1) {
		t.Errorf("migrated = %v, want 1", result["migrated"])
	}
	migrated := result["websites"].([]any)[0].(map[string]any)
	if migrated["id"] != guestID {
		t.Errorf("id changed across migration: %v -> %v", guestID, migrated["id"])
	}
	if migrated["owner_status"] != "active" {
		t.Errorf("owner_status = %v, want active", migrated["owner_status"])
	}

	// Resubmitting is a no-op
	rec, env = doJSON(t, router, "POST", "/migrate", body, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat migrate status = %d", rec.Code)
	}
	rec, env = doJSON(t, router, "GET", "/website", nil, headers)
	if got := env["data"].([]any); len(got) != 1 {
		t.Errorf("user owns %d sites after repeat migration, want 1", len(got))
	}
	_ = rec
}

func TestMigrateClaimsPresentedToken(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)
	token := issueToken(t, router)
	guestHeaders := map[string]string{middleware.VisitorTokenHeader: token}

	rec, env := doJSON(t, router, "POST", "/guest", map[string]string{"url": site.URL, "name": "Guest Site"}, guestHeaders)
	if rec.Code != http.StatusCreated {
		t.Fatalf("guest create status = %d", rec.Code)
	}
	guestID := env["data"].(map[string]any)["id"].(string)

	access, _ := signup(t, router, "alice@example.com", nil)
	headers := map[string]string{
		"Authorization":               "Bearer " + access,
		middleware.VisitorTokenHeader: token,
	}

	body := map[string]any{"websites": []map[string]string{{"id": guestID, "url": site.URL, "name": "Guest Site"}}}
	rec, env = doJSON(t, router, "POST", "/migrate", body, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("migrate status = %d: %v", rec.Code, env)
	}
	result := env["data"].(map[string]any)
	if result["websites_transferred"] != float64(1) {
		t.Errorf("websites_transferred = %v, want 1", result["websites_transferred"])
	}

	// The token left the anonymous state
	rec, env = doJSON(t, router, "GET", "/visitor/token/"+token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rec.Code)
	}
	if env["data"].(map[string]any)["status"] != "claimed" {
		t.Errorf("token status = %v, want claimed", env["data"].(map[string]any)["status"])
	}

	// And the site lists once under the account
	_, env = doJSON(t, router, "GET", "/website", nil, map[string]string{"Authorization": "Bearer " + access})
	if got := env["data"].([]any); len(got) != 1 {
		t.Errorf("user owns %d sites, want 1", len(got))
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	router := setupRouter(t)
	_, data := signup(t, router, "alice@example.com", nil)
	refresh := data["refresh_token"].(string)

	rec, env := doJSON(t, router, "POST", "/user/refresh-token", map[string]string{"refresh_token": refresh}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %v", rec.Code, env)
	}
	rotated := env["data"].(map[string]any)
	if rotated["access_token"] == "" || rotated["refresh_token"] == "" {
		t.Fatal("rotation returned empty tokens")
	}

	// The replaced refresh token is dead
	rec, _ = doJSON(t, router, "POST", "/user/refresh-token", map[string]string{"refresh_token": refresh}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("replayed refresh status = %d, want 401", rec.Code)
	}

	// The new one works
	rec, _ = doJSON(t, router, "POST", "/user/refresh-token", map[string]string{"refresh_token": rotated["refresh_token"].(string)}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("rotated refresh status = %d, want 200", rec.Code)
	}
}

func TestTokenStatsEndpoint(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)
	token := issueToken(t, router)
	headers := map[string]string{middleware.VisitorTokenHeader: token}

	rec, _ := doJSON(t, router, "POST", "/guest", map[string]string{"url": site.URL}, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("guest create status = %d", rec.Code)
	}

	rec, env := doJSON(t, router, "GET", "/visitor/token/"+token+"/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d: %v", rec.Code, env)
	}
	data := env["data"].(map[string]any)
	if data["website_count"] != float64(1) {
		t.Errorf("website_count = %v, want 1", data["website_count"])
	}
	if data["days_left"] == nil {
		t.Error("days_left missing for anonymous token")
	}
}

func TestCrossTenantDeleteReadsAsNotFound(t *testing.T) {
	router := setupRouter(t)
	site := targetSite(t)

	alice, _ := signup(t, router, "alice@example.com", nil)
	bob, _ := signup(t, router, "bob@example.com", nil)

	rec, env := doJSON(t, router, "POST", "/website", map[string]string{"url": site.URL}, map[string]string{"Authorization": "Bearer " + alice})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	id := env["data"].(map[string]any)["id"].(string)

	rec, _ = doJSON(t, router, "DELETE", "/website/"+id, nil, map[string]string{"Authorization": "Bearer " + bob})
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant delete status = %d, want 404", rec.Code)
	}
}
