package users

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-social/meridian-users/internal/shared"
	"github.com/meridian-social/meridian-users/internal/storage"
)

// callerAuth injects a fixed caller, standing in for the token middleware.
func callerAuth(caller shared.Caller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if caller.ID == 0 {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), caller)))
		})
	}
}

func newHandlerServer(t *testing.T, env *testEnv, caller shared.Caller) *httptest.Server {
	t.Helper()
	handler := NewHandler(nil, env.service, callerAuth(caller))
	r := chi.NewRouter()
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func patchJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeProfile(t *testing.T, r io.Reader) Profile {
	t.Helper()
	var p Profile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	return p
}

func TestCreateUserEndpoint(t *testing.T) {
	env := newTestEnv(t)
	srv := newHandlerServer(t, env, shared.Caller{})

	resp := postJSON(t, srv.URL+"/users", `{"username":"alice01","password":"pw123456","email":"a@x.com"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	profile := decodeProfile(t, resp.Body)
	if profile.ID == 0 || profile.Username != "alice01" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// Same pair again: duplicate account.
	resp = postJSON(t, srv.URL+"/users", `{"username":"alice01","password":"pw123456","email":"a@x.com"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	// Short username fails validation before the service is reached.
	resp = postJSON(t, srv.URL+"/users", `{"username":"bob","password":"pw123456","email":"b@x.com"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetUserEndpoints(t *testing.T) {
	env := newTestEnv(t)
	seeded := env.seedUser(t, "alice01", "pw123456", "a@x.com")
	srv := newHandlerServer(t, env, shared.Caller{})

	resp, err := http.Get(srv.URL + "/users/7777")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/users/by-username/alice01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	profile := decodeProfile(t, resp.Body)
	if profile.ID != seeded.ID {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	resp, err = http.Get(srv.URL + "/users/not-a-number")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCredentialsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice01", "pw123456", "a@x.com")
	srv := newHandlerServer(t, env, shared.Caller{})

	resp := postJSON(t, srv.URL+"/users/credentials", `{"username":"alice01","password":"pw123456"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/users/credentials", `{"username":"alice01","password":"wrong"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUpdateProfileEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice01", "pw123456", "a@x.com")
	env.seedUser(t, "robert7", "pw123456", "r@x.com")
	srv := newHandlerServer(t, env, shared.Caller{ID: alice.ID, Username: alice.Username})

	resp := patchJSON(t, srv.URL+"/profile", `{"bio":"hello there"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	profile := decodeProfile(t, resp.Body)
	if profile.Bio == nil || *profile.Bio != "hello there" {
		t.Fatalf("bio not committed: %+v", profile)
	}

	resp = patchJSON(t, srv.URL+"/profile", `{"username":"robert7"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestUpdateProfileRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	srv := newHandlerServer(t, env, shared.Caller{})

	resp := patchJSON(t, srv.URL+"/profile", `{"bio":"x"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUpdatePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice01", "pw123456", "a@x.com")
	srv := newHandlerServer(t, env, shared.Caller{ID: alice.ID, Username: alice.Username})

	resp := patchJSON(t, srv.URL+"/profile/password", `{"old_password":"wrong","new_password":"newpass99"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp = patchJSON(t, srv.URL+"/profile/password", `{"old_password":"pw123456","new_password":"newpass99"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if _, err := env.service.GetByCredentials(t.Context(), "alice01", "newpass99"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestUpdatePictureEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice01", "pw123456", "a@x.com")

	store, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	env.service = NewService(env.repo, NewCache(env.redis, time.Minute), env.channel, store, nil, nil)
	srv := newHandlerServer(t, env, shared.Caller{ID: alice.ID, Username: alice.Username})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("picture", "me.jpg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/profile/picture", &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["profile_picture"] == "" {
		t.Fatalf("missing file name in response: %v", body)
	}
	if ref := env.repo.rows[alice.ID].ProfilePicture; ref == nil || *ref != body["profile_picture"] {
		t.Fatalf("reference not stored: %+v", ref)
	}
}
