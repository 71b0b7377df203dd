package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Ryan-Har/rumorlens/api"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "cli-access-token"

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	user := models.User{ID: uuid.New(), Email: "a@example.com", Username: "alice", IsActive: true}

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("password") != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, models.TokenPair{AccessToken: testToken, RefreshToken: "r", TokenType: "bearer"})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.Message{Message: "Successfully logged out", Success: true})
	})
	mux.HandleFunc("GET /api/v1/users/me", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, user)
	}))
	mux.HandleFunc("POST /api/v1/detection/single", authed(func(w http.ResponseWriter, r *http.Request) {
		var req api.DetectionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, models.Detection{ID: uuid.New(), Content: req.Content, RiskLevel: models.RiskLow})
	}))
	mux.HandleFunc("POST /api/v1/detection/batch", authed(func(w http.ResponseWriter, r *http.Request) {
		var req api.BatchDetectionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, models.BatchDetection{Total: len(req.Contents), Success: len(req.Contents)})
	}))
	mux.HandleFunc("DELETE /api/v1/history/batch", authed(func(w http.ResponseWriter, r *http.Request) {
		var req api.BatchDeleteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, api.Message{Message: "Deleted 2 records", Success: true})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cli runs one invocation against a shared server and storage file.
type cli struct {
	server  string
	storage string
}

func newCLI(t *testing.T) *cli {
	return &cli{
		server:  newFakeAPI(t).URL,
		storage: filepath.Join(t.TempDir(), "client.db"),
	}
}

func (c *cli) run(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	global := []string{"--server", c.server, "--storage", c.storage, "--log-level", "error"}
	err := run(context.Background(), append(global, args...), &stdout, &stderr)
	return stdout.String(), err
}

func TestCLI_SessionLifecycle(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("whoami")
	require.ErrorIs(t, err, errAuthRequired)

	_, err = c.run("login", "--email", "a@example.com", "--password", "wrong")
	assert.True(t, api.IsStatus(err, http.StatusUnauthorized))

	out, err := c.run("login", "--email", "a@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Equal(t, "logged in as alice\n", out)

	// the token persists between invocations
	out, err = c.run("whoami")
	require.NoError(t, err)
	var u models.User
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, "alice", u.Username)

	out, err = c.run("login", "--email", "a@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Equal(t, "already logged in as alice\n", out)

	out, err = c.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, `"authenticated": true`)
	assert.Contains(t, out, `"access_token": "****oken"`)

	out, err = c.run("logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	_, err = c.run("detect", "anything")
	require.ErrorIs(t, err, errAuthRequired)
}

func TestCLI_DetectionCommands(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("login", "--email", "a@example.com", "--password", "secret")
	require.NoError(t, err)

	out, err := c.run("detect", "--no-analysis", "the", "moon", "is", "cheese")
	require.NoError(t, err)
	var d models.Detection
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "the moon is cheese", d.Content)

	file := filepath.Join(t.TempDir(), "claims.txt")
	require.NoError(t, os.WriteFile(file, []byte("first\n\n  \nsecond\nthird\n"), 0o600))
	out, err = c.run("batch", file)
	require.NoError(t, err)
	var b models.BatchDetection
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, 3, b.Total, "blank lines are skipped")

	out, err = c.run("delete", uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, "Deleted 2 records\n", out)

	_, err = c.run("show", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid detection id")

	_, err = c.run("history", "--from", "yesterday")
	assert.ErrorContains(t, err, "--from")
}

func TestCLI_Usage(t *testing.T) {
	c := newCLI(t)

	_, err := c.run()
	assert.ErrorContains(t, err, "no command given")

	_, err = c.run("frobnicate")
	assert.ErrorContains(t, err, `unknown command "frobnicate"`)

	var stderr bytes.Buffer
	err = run(context.Background(), []string{"--timeout=-1s", "status"}, &bytes.Buffer{}, &stderr)
	assert.ErrorContains(t, err, "server.timeout")
}

func TestReadLines(t *testing.T) {
	file := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(file, []byte(" a \r\nb\n\n"), 0o600))

	lines, err := readLines(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)

	_, err = readLines(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
