package tests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// serviceKey is the process-level credential the server under test is
// configured with; requests on the service client carry it as the bearer.
const serviceKey = "service-role-key"

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

func (r recordedRequest) bearer() string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

type pgrstError struct {
	status  int
	code    string
	message string
}

type fakeUser struct {
	ID       string
	Email    string
	Password string
	Metadata map[string]interface{}
}

// fakeSupabase fakes the GoTrue/PostgREST/storage surfaces the proxy talks to
// and records every request, so tests can assert both what was forwarded and
// that nothing was called at all.
type fakeSupabase struct {
	t      *testing.T
	srv    *httptest.Server
	secret []byte

	mu         sync.Mutex
	users      map[string]*fakeUser // by id
	rows       map[string]json.RawMessage
	singles    map[string]json.RawMessage
	tableErrs  map[string]*pgrstError
	rpcResults map[string]json.RawMessage
	requests   []recordedRequest
}

func newFakeSupabase(t *testing.T) *fakeSupabase {
	f := &fakeSupabase{
		t:          t,
		secret:     []byte("test-jwt-secret"),
		users:      map[string]*fakeUser{},
		rows:       map[string]json.RawMessage{},
		singles:    map[string]json.RawMessage{},
		tableErrs:  map[string]*pgrstError{},
		rpcResults: map[string]json.RawMessage{},
	}
	f.srv = httptest.NewServer(f)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSupabase) URL() string { return f.srv.URL }

// fixtures

func (f *fakeSupabase) addUser(email, password string) *fakeUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	usr := &fakeUser{
		ID:       uuid.New().String(),
		Email:    email,
		Password: password,
		Metadata: map[string]interface{}{},
	}
	f.users[usr.ID] = usr
	return usr
}

func (f *fakeSupabase) tokenFor(usr *fakeUser) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": usr.ID})
	signed, err := token.SignedString(f.secret)
	if err != nil {
		f.t.Fatalf("tokenFor() failed: %v", err)
	}
	return signed
}

func (f *fakeSupabase) setRows(table string, rows string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = json.RawMessage(rows)
}

func (f *fakeSupabase) setSingle(table string, row string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles[table] = json.RawMessage(row)
}

func (f *fakeSupabase) setTableError(table string, status int, code, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableErrs[table] = &pgrstError{status: status, code: code, message: message}
}

func (f *fakeSupabase) setRPC(function string, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rpcResults[function] = json.RawMessage(result)
}

// recorded gives a snapshot of every request received so far.
func (f *fakeSupabase) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeSupabase) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

// server

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	f.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/auth/v1/"):
		f.serveAuth(w, r, body)
	case strings.HasPrefix(r.URL.Path, "/rest/v1/rpc/"):
		f.serveRPC(w, r)
	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		f.serveRest(w, r, body)
	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
		writeJSON(w, http.StatusOK, `{"Key":"`+strings.TrimPrefix(r.URL.Path, "/storage/v1/object/")+`"}`)
	default:
		writeJSON(w, http.StatusNotFound, `{"message":"not found"}`)
	}
}

func (f *fakeSupabase) serveAuth(w http.ResponseWriter, r *http.Request, body []byte) {
	switch strings.TrimPrefix(r.URL.Path, "/auth/v1") {
	case "/signup":
		var payload struct {
			Email    string                 `json:"email"`
			Password string                 `json:"password"`
			Data     map[string]interface{} `json:"data"`
		}
		_ = json.Unmarshal(body, &payload)
		f.mu.Lock()
		for _, u := range f.users {
			if u.Email == payload.Email {
				f.mu.Unlock()
				writeJSON(w, http.StatusBadRequest, `{"msg":"User already registered"}`)
				return
			}
		}
		f.mu.Unlock()
		usr := f.addUser(payload.Email, payload.Password)
		if payload.Data != nil {
			usr.Metadata = payload.Data
		}
		writeJSON(w, http.StatusOK, `{"user":`+string(f.userJSON(usr))+`,"session":null}`)

	case "/token":
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.Unmarshal(body, &creds)
		f.mu.Lock()
		var usr *fakeUser
		for _, u := range f.users {
			if u.Email == creds.Email && u.Password == creds.Password {
				usr = u
				break
			}
		}
		f.mu.Unlock()
		if usr == nil {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK,
			`{"access_token":"`+f.tokenFor(usr)+`","token_type":"bearer","user":`+string(f.userJSON(usr))+`}`)

	case "/logout":
		w.WriteHeader(http.StatusNoContent)

	case "/user":
		usr := f.userFromToken(r)
		if usr == nil {
			writeJSON(w, http.StatusUnauthorized, `{"msg":"invalid JWT"}`)
			return
		}
		if r.Method == http.MethodPut {
			var payload struct {
				Data map[string]interface{} `json:"data"`
			}
			_ = json.Unmarshal(body, &payload)
			f.mu.Lock()
			for k, v := range payload.Data {
				usr.Metadata[k] = v
			}
			f.mu.Unlock()
		}
		writeRaw(w, http.StatusOK, f.userJSON(usr))

	case "/admin/users":
		if bearerOf(r) != serviceKey {
			writeJSON(w, http.StatusForbidden, `{"msg":"admin access required"}`)
			return
		}
		var payload struct {
			Email        string                 `json:"email"`
			Password     string                 `json:"password"`
			UserMetadata map[string]interface{} `json:"user_metadata"`
		}
		_ = json.Unmarshal(body, &payload)
		usr := f.addUser(payload.Email, payload.Password)
		if payload.UserMetadata != nil {
			usr.Metadata = payload.UserMetadata
		}
		writeRaw(w, http.StatusOK, f.userJSON(usr))

	default:
		writeJSON(w, http.StatusNotFound, `{"msg":"not found"}`)
	}
}

func (f *fakeSupabase) serveRPC(w http.ResponseWriter, r *http.Request) {
	function := strings.TrimPrefix(r.URL.Path, "/rest/v1/rpc/")
	f.mu.Lock()
	result, ok := f.rpcResults[function]
	f.mu.Unlock()
	if !ok {
		result = json.RawMessage("null")
	}
	writeRaw(w, http.StatusOK, result)
}

func (f *fakeSupabase) serveRest(w http.ResponseWriter, r *http.Request, body []byte) {
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	single := strings.Contains(r.Header.Get("Accept"), "vnd.pgrst.object")

	f.mu.Lock()
	tableErr := f.tableErrs[table]
	canned, hasRows := f.rows[table]
	cannedSingle, hasSingle := f.singles[table]
	f.mu.Unlock()

	if tableErr != nil {
		writeJSON(w, tableErr.status, `{"code":"`+tableErr.code+`","message":"`+tableErr.message+`","details":null,"hint":null}`)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if single {
			if hasSingle {
				writeRaw(w, http.StatusOK, cannedSingle)
			} else {
				writeJSON(w, http.StatusNotAcceptable,
					`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"Results contain 0 rows","hint":null}`)
			}
			return
		}
		if hasRows {
			writeRaw(w, http.StatusOK, canned)
		} else {
			writeJSON(w, http.StatusOK, `[]`)
		}
	case http.MethodPost:
		if strings.Contains(r.Header.Get("Prefer"), "return=minimal") {
			w.WriteHeader(http.StatusCreated)
			return
		}
		// echo the inserted representation back
		writeRaw(w, http.StatusCreated, body)
	case http.MethodPatch:
		if hasSingle {
			writeRaw(w, http.StatusOK, cannedSingle)
			return
		}
		writeRaw(w, http.StatusOK, body)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, `{"message":"method not allowed"}`)
	}
}

func (f *fakeSupabase) userFromToken(r *http.Request) *fakeUser {
	token, err := jwt.Parse(bearerOf(r), func(t *jwt.Token) (interface{}, error) {
		return f.secret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	sub, _ := claims["sub"].(string)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[sub]
}

func (f *fakeSupabase) userJSON(usr *fakeUser) json.RawMessage {
	data, err := json.Marshal(map[string]interface{}{
		"id":            usr.ID,
		"aud":           "authenticated",
		"role":          "authenticated",
		"email":         usr.Email,
		"user_metadata": usr.Metadata,
	})
	if err != nil {
		f.t.Fatalf("userJSON() failed: %v", err)
	}
	return data
}

func bearerOf(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	writeRaw(w, code, []byte(body))
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
