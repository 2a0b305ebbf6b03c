// pkg/vault/vaulttest/server.go
//
// Package vaulttest runs an in-memory stand-in for the parts of Vault's HTTP
// API that kvault touches: KV v1/v2 read, write and list, sys/mounts,
// sys/health and AppRole/userpass login.
package vaulttest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// Recorded is one request seen by the server.
type Recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type mount struct {
	typ     string
	version int
}

type failure struct {
	status int
	body   any
}

type secret struct {
	data    map[string]any
	version int
	created time.Time
}

// Server is a fake Vault. Logical paths used with Put and Get are
// "mount/rest", independent of the engine version.
type Server struct {
	*httptest.Server

	// Token, when set, must accompany every non-login request.
	Token string

	mu         sync.Mutex
	mounts     map[string]mount
	secrets    map[string]*secret
	failures   map[string]failure
	requests   []Recorded
	health     map[string]any
	healthCode int
	logins     map[string]string
}

// New starts a server with no mounts and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		mounts:   make(map[string]mount),
		secrets:  make(map[string]*secret),
		failures: make(map[string]failure),
		logins:   make(map[string]string),
		health: map[string]any{
			"initialized":     true,
			"sealed":          false,
			"standby":         false,
			"version":         "1.16.0",
			"cluster_name":    "vault-cluster-test",
			"server_time_utc": 1700000000,
		},
		healthCode: http.StatusOK,
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/sys/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/v1/sys/mounts", s.handleMounts).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/{mount}/login", s.handleLogin).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/v1/auth/{mount}/login/{user}", s.handleLogin).Methods(http.MethodPost, http.MethodPut)
	r.PathPrefix("/v1/").HandlerFunc(s.handleLogical)

	s.Server = httptest.NewServer(s.record(r))
	t.Cleanup(s.Close)
	return s
}

// AddMount registers a secret engine. version is 1 or 2 for KV engines.
func (s *Server) AddMount(path, typ string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounts[strings.Trim(path, "/")] = mount{typ: typ, version: version}
}

// Put stores data at a logical path.
func (s *Server) Put(path string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(strings.Trim(path, "/"), data)
}

// Get returns the data stored at a logical path.
func (s *Server) Get(path string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[strings.Trim(path, "/")]
	if !ok {
		return nil, false
	}
	return sec.data, true
}

// Fail makes every request to apiPath (no /v1/ prefix, no query) answer
// with status and a Vault-style errors body.
func (s *Server) Fail(apiPath string, status int) {
	s.FailWith(apiPath, status, map[string]any{"errors": []string{"injected failure"}})
}

// FailWith is Fail with a custom JSON body.
func (s *Server) FailWith(apiPath string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.Trim(apiPath, "/")] = failure{status: status, body: body}
}

// SetHealth overrides fields of the sys/health body and its status code.
func (s *Server) SetHealth(status int, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthCode = status
	for k, v := range fields {
		s.health[k] = v
	}
}

// AllowLogin accepts credential for the auth mount and issues token.
// For AppRole the credential is the role_id, for userpass the username.
func (s *Server) AllowLogin(authMount, credential, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins[authMount+"|"+credential] = token
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// RequestsTo filters Requests by API path.
func (s *Server) RequestsTo(apiPath string) []Recorded {
	var out []Recorded
	for _, r := range s.Requests() {
		if r.Path == strings.Trim(apiPath, "/") {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		apiPath := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/"), "/")
		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method: r.Method,
			Path:   apiPath,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		f, failing := s.failures[apiPath]
		s.mu.Unlock()

		if failing {
			writeJSON(w, f.status, f.body)
			return
		}
		if !strings.HasPrefix(apiPath, "auth/") && s.Token != "" && r.Header.Get("X-Vault-Token") != s.Token {
			writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"permission denied"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, s.healthCode, s.health)
}

func (s *Server) handleMounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make(map[string]any, len(s.mounts)+1)
	for p, m := range s.mounts {
		entry := map[string]any{"type": m.typ, "options": map[string]string{}}
		if m.typ == "kv" {
			entry["options"] = map[string]string{"version": strconv.Itoa(m.version)}
		}
		data[p+"/"] = entry
	}
	if _, ok := data["sys/"]; !ok {
		data["sys/"] = map[string]any{"type": "system"}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	credential := vars["user"]
	if credential == "" {
		var body struct {
			RoleID string `json:"role_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		credential = body.RoleID
	}

	s.mu.Lock()
	token, ok := s.logins[vars["mount"]+"|"+credential]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"invalid credentials"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auth": map[string]any{
			"client_token":   token,
			"accessor":       "accessor-" + credential,
			"lease_duration": 3600,
			"renewable":      true,
		},
	})
}

func (s *Server) handleLogical(w http.ResponseWriter, r *http.Request) {
	apiPath := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/"), "/")
	isList := r.Method == "LIST" || (r.Method == http.MethodGet && r.URL.Query().Get("list") == "true")

	s.mu.Lock()
	defer s.mu.Unlock()

	mountPath, m, rest, ok := s.resolveLocked(apiPath)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{"no handler for route " + apiPath}})
		return
	}

	infix := ""
	if m.version == 2 {
		infix, rest, _ = strings.Cut(rest, "/")
		if infix != "data" && infix != "metadata" {
			writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{"unsupported path"}})
			return
		}
	}
	logical := mountPath
	if rest != "" {
		logical += "/" + rest
	}

	switch {
	case isList:
		s.listLocked(w, mountPath, rest)
	case r.Method == http.MethodGet:
		sec, ok := s.secrets[logical]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{}})
			return
		}
		switch {
		case m.version == 1:
			writeJSON(w, http.StatusOK, map[string]any{"data": sec.data})
		case infix == "metadata":
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
				"current_version": sec.version,
				"created_time":    sec.created.Format(time.RFC3339Nano),
			}})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
				"data": sec.data,
				"metadata": map[string]any{
					"created_time":  sec.created.Format(time.RFC3339Nano),
					"deletion_time": "",
					"destroyed":     false,
					"version":       sec.version,
				},
			}})
		}
	case r.Method == http.MethodPut || r.Method == http.MethodPost:
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"failed to parse JSON input"}})
			return
		}
		if m.version == 2 {
			if infix != "data" {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"errors": []string{"unsupported operation"}})
				return
			}
			inner, ok := payload["data"].(map[string]any)
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"no data provided"}})
				return
			}
			sec := s.putLocked(logical, inner)
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"version": sec.version}})
			return
		}
		s.putLocked(logical, payload)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"errors": []string{"unsupported operation"}})
	}
}

func (s *Server) resolveLocked(apiPath string) (string, mount, string, bool) {
	best := ""
	for p := range s.mounts {
		if (apiPath == p || strings.HasPrefix(apiPath, p+"/")) && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return "", mount{}, "", false
	}
	return best, s.mounts[best], strings.TrimPrefix(strings.TrimPrefix(apiPath, best), "/"), true
}

func (s *Server) listLocked(w http.ResponseWriter, mountPath, folder string) {
	prefix := mountPath + "/"
	if folder != "" {
		prefix += strings.TrimSuffix(folder, "/") + "/"
	}
	seen := make(map[string]struct{})
	for p := range s.secrets {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		tail := strings.TrimPrefix(p, prefix)
		if head, _, nested := strings.Cut(tail, "/"); nested {
			seen[head+"/"] = struct{}{}
		} else {
			seen[tail] = struct{}{}
		}
	}
	if len(seen) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{}})
		return
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"keys": keys}})
}

func (s *Server) putLocked(logical string, data map[string]any) *secret {
	sec, ok := s.secrets[logical]
	if !ok {
		sec = &secret{created: time.Now().UTC()}
		s.secrets[logical] = sec
	}
	sec.data = data
	sec.version++
	return sec
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
