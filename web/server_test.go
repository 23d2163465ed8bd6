package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ca "github.com/courseai/courseai"
	"github.com/courseai/courseai/stores"
	"github.com/courseai/courseai/web"
)

// staticVerifier resolves fixed tokens to fixed claims, standing in for
// Google token validation.
type staticVerifier struct {
	tokens map[string]*ca.FederatedClaims
}

func (v *staticVerifier) Verify(ctx context.Context, rawToken string) (*ca.FederatedClaims, error) {
	claims, ok := v.tokens[rawToken]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", ca.ErrVerificationFailed)
	}
	return claims, nil
}

type staticAnalyzer struct {
	report json.RawMessage
	err    error
}

func (a *staticAnalyzer) AnalyzeCourse(ctx context.Context, course string) (json.RawMessage, error) {
	return a.report, a.err
}

type fixture struct {
	server    *httptest.Server
	histories ca.HistoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	identities := stores.NewFSIdentityStore(dir)
	histories := stores.NewFSHistoryStore(dir)
	srv := &web.Server{
		Unifier: ca.NewUnifier(identities, ca.NewHasher(4)),
		Verifier: &staticVerifier{tokens: map[string]*ca.FederatedClaims{
			"good-token": {Email: "jane@example.com", DisplayName: "Jane Doe", AvatarURL: "http://img/jane.png"},
		}},
		Identities: identities,
		Histories:  histories,
		Analyzer:   &staticAnalyzer{report: json.RawMessage(`{"summary":"fine"}`)},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	ts := httptest.NewServer(srv.Handler([]string{"http://app.example"}))
	t.Cleanup(ts.Close)
	return &fixture{server: ts, histories: histories}
}

func (f *fixture) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// googleLogin provisions jane@example.com and returns her account payload.
func (f *fixture) googleLogin(t *testing.T) map[string]any {
	t.Helper()
	resp, body := f.request(t, http.MethodPost, "/api/google-auth", map[string]string{"token": "good-token"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("google-auth status = %d, body %v", resp.StatusCode, body)
	}
	return body
}

func TestGoogleAuth(t *testing.T) {
	f := newFixture(t)

	body := f.googleLogin(t)
	user, _ := body["user"].(map[string]any)
	if user["email"] != "jane@example.com" {
		t.Errorf("user = %v", user)
	}
	if body["needsPassword"] != true {
		t.Errorf("needsPassword = %v, want true", body["needsPassword"])
	}

	t.Run("bad token", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPost, "/api/google-auth", map[string]string{"token": "forged"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body["message"] != "Google Auth Failed" {
			t.Errorf("message = %v", body["message"])
		}
	})

	t.Run("missing token", func(t *testing.T) {
		resp, _ := f.request(t, http.MethodPost, "/api/google-auth", map[string]string{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})
}

func TestLocalAuthFlow(t *testing.T) {
	f := newFixture(t)
	f.googleLogin(t)

	t.Run("login before password set", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPost, "/api/auth", map[string]string{
			"username": "jane@example.com", "password": "whatever",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body["code"] != "federation_required" {
			t.Errorf("code = %v", body["code"])
		}
	})

	resp, body := f.request(t, http.MethodPost, "/api/set-password", map[string]string{
		"email": "jane@example.com", "username": "jane_doe", "password": "s3cret!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set-password status = %d, body %v", resp.StatusCode, body)
	}

	t.Run("login with username", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPost, "/api/auth", map[string]string{
			"username": "Jane_Doe", "password": "s3cret!",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body %v", resp.StatusCode, body)
		}
		user, _ := body["user"].(map[string]any)
		if user["username"] != "jane_doe" {
			t.Errorf("user = %v", user)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPost, "/api/auth", map[string]string{
			"username": "jane_doe", "password": "nope",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body["message"] != "Invalid password!" || body["field"] != "password" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPost, "/api/auth", map[string]string{
			"username": "ghost", "password": "s3cret!",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body["message"] != "Account not found!" {
			t.Errorf("message = %v", body["message"])
		}
	})

	t.Run("update password", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPut, "/api/update-password", map[string]string{
			"email": "jane@example.com", "password": "newsecret",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body %v", resp.StatusCode, body)
		}
		if body["passwordLastChanged"] == nil {
			t.Error("missing passwordLastChanged")
		}

		resp, _ = f.request(t, http.MethodPost, "/api/auth", map[string]string{
			"username": "jane_doe", "password": "newsecret",
		})
		if resp.StatusCode != http.StatusOK {
			t.Errorf("login with new password: status = %d", resp.StatusCode)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPut, "/api/update-password", map[string]string{
			"email": "jane@example.com", "password": "ab",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body["code"] != "weak_password" {
			t.Errorf("code = %v", body["code"])
		}
	})

	t.Run("over-long password", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPut, "/api/update-password", map[string]string{
			"email": "jane@example.com", "password": strings.Repeat("a", 80),
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if body["code"] != "invalid_input" {
			t.Errorf("code = %v", body["code"])
		}
	})

	t.Run("reclaim own username", func(t *testing.T) {
		resp, body := f.request(t, http.MethodPost, "/api/set-password", map[string]string{
			"email": "jane@example.com", "username": "jane_doe", "password": "s3cret!",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("reclaim own username: status = %d, body %v", resp.StatusCode, body)
		}
	})
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t)

	resp, created := f.request(t, http.MethodPost, "/api/history", map[string]string{
		"userId": "u1", "searchQuery": "intro to go",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("append status = %d, body %v", resp.StatusCode, created)
	}
	recordID, _ := created["id"].(string)
	if recordID == "" {
		t.Fatalf("no record id in %v", created)
	}
	f.request(t, http.MethodPost, "/api/history", map[string]string{"userId": "u1", "searchQuery": "databases"})

	t.Run("list", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/api/history/u1", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var records []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			t.Fatal(err)
		}
		if len(records) != 2 {
			t.Fatalf("len = %d, want 2", len(records))
		}
		if records[0]["searchQuery"] != "databases" {
			t.Errorf("newest first expected, got %v", records[0])
		}
	})

	t.Run("append without query", func(t *testing.T) {
		resp, _ := f.request(t, http.MethodPost, "/api/history", map[string]string{"userId": "u1"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("delete one", func(t *testing.T) {
		resp, _ := f.request(t, http.MethodDelete, "/api/history/u1/"+recordID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		resp, body := f.request(t, http.MethodDelete, "/api/history/u1/"+recordID, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("second delete status = %d, body %v", resp.StatusCode, body)
		}
	})

	t.Run("clear", func(t *testing.T) {
		resp, body := f.request(t, http.MethodDelete, "/api/history/u1", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body["deletedCount"] != float64(1) {
			t.Errorf("deletedCount = %v, want 1", body["deletedCount"])
		}
	})
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture(t)
	body := f.googleLogin(t)
	user, _ := body["user"].(map[string]any)
	userID, _ := user["id"].(string)

	f.request(t, http.MethodPost, "/api/history", map[string]string{"userId": userID, "searchQuery": "algebra"})
	f.request(t, http.MethodPost, "/api/history", map[string]string{"userId": userID, "searchQuery": "calculus"})

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/api/admin/users", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var users []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Fatalf("len = %d, want 1", len(users))
	}
	if users[0]["historyCount"] != float64(2) {
		t.Errorf("historyCount = %v, want 2", users[0]["historyCount"])
	}

	req, _ = http.NewRequest(http.MethodGet, f.server.URL+"/api/admin/user-history/"+userID, nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var records []map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("len = %d, want 2", len(records))
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, body := f.request(t, http.MethodPost, "/api/ai", map[string]string{"course": "Linear Algebra"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["summary"] != "fine" {
		t.Errorf("body = %v", body)
	}

	t.Run("missing course", func(t *testing.T) {
		resp, _ := f.request(t, http.MethodPost, "/api/ai", map[string]string{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req, _ := http.NewRequest(http.MethodOptions, f.server.URL+"/api/auth", nil)
	req.Header.Set("Origin", "http://app.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://app.example" {
		t.Errorf("allow-origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodOptions, f.server.URL+"/api/auth", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin for unknown origin = %q", got)
	}
}
