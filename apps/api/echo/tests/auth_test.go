package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_authApi_signup(t *testing.T) {
	app, fake := setup(t)
	fake.addUser("taken@test.cd", "s3cret")

	t.Run("validation rejects before any backend call", func(t *testing.T) {
		tests := []httpTest{
			{name: "empty body", body: []byte(`{}`)},
			{name: "bad email", body: []byte(`{"email":"not-an-email","password":"s3cret"}`)},
			{name: "missing password", body: []byte(`{"email":"new@test.cd"}`)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				fake.reset()
				req, rec := newRequest(http.MethodPost, "/api/auth/signup", tt.body)
				app.ServeHTTP(rec, req)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Empty(t, fake.recorded())
			})
		}
	})

	t.Run("duplicate email surfaces the backend reason", func(t *testing.T) {
		fake.reset()
		req, rec := newRequest(http.MethodPost, "/api/auth/signup",
			[]byte(`{"email":"taken@test.cd","password":"s3cret"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"User already registered"}`, rec.Body.String())
	})

	t.Run("success echoes the auth response", func(t *testing.T) {
		fake.reset()
		req, rec := newRequest(http.MethodPost, "/api/auth/signup",
			[]byte(`{"email":"new@test.cd","password":"s3cret","fullName":"New User"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := jsonBody(t, rec)
		usr, ok := body["user"].(map[string]interface{})
		require.True(t, ok, "response has no user object: %s", rec.Body.String())
		assert.Equal(t, "new@test.cd", usr["email"])
		assert.Equal(t, map[string]interface{}{"full_name": "New User"}, usr["user_metadata"])
		assert.Nil(t, body["session"])

		// signup runs on the service credential, there is no user token yet
		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/auth/v1/signup", reqs[0].Path)
		assert.Equal(t, serviceKey, reqs[0].bearer())
	})
}

func Test_authApi_login(t *testing.T) {
	app, fake := setup(t)
	fake.addUser("hero@test.cd", "s3cret")

	t.Run("wrong credentials", func(t *testing.T) {
		fake.reset()
		req, rec := newRequest(http.MethodPost, "/api/auth/login",
			[]byte(`{"email":"hero@test.cd","password":"wrong"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid login credentials"}`, rec.Body.String())
	})

	t.Run("empty password rejected locally", func(t *testing.T) {
		fake.reset()
		req, rec := newRequest(http.MethodPost, "/api/auth/login",
			[]byte(`{"email":"hero@test.cd"}`))
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, fake.recorded())
	})

	t.Run("success returns the session", func(t *testing.T) {
		fake.reset()
		req, rec := newRequest(http.MethodPost, "/api/auth/login",
			[]byte(`{"email":"hero@test.cd","password":"s3cret"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := jsonBody(t, rec)
		assert.NotEmpty(t, body["access_token"])
		usr, ok := body["user"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "hero@test.cd", usr["email"])

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/auth/v1/token", reqs[0].Path)
		assert.Equal(t, "password", reqs[0].Query.Get("grant_type"))
	})
}

func Test_authApi_logout(t *testing.T) {
	app, fake := setup(t)
	hero := fake.addUser("hero@test.cd", "s3cret")

	wantData := []byte(`{"message":"Logged out successfully"}`)

	t.Run("without a token it is a no-op success", func(t *testing.T) {
		fake.reset()
		req, rec := newRequest(http.MethodPost, "/api/auth/logout")
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, string(wantData), rec.Body.String())
		assert.Empty(t, fake.recorded())
	})

	t.Run("with a token the session is revoked", func(t *testing.T) {
		fake.reset()
		token := fake.tokenFor(hero)
		req, rec := newAuthRequest(http.MethodPost, "/api/auth/logout", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, string(wantData), rec.Body.String())

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/auth/v1/logout", reqs[0].Path)
		assert.Equal(t, token, reqs[0].bearer())
	})
}

func Test_authApi_role(t *testing.T) {
	app, fake := setup(t)
	hero := fake.addUser("hero@test.cd", "s3cret")
	token := fake.tokenFor(hero)

	t.Run("missing token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/user/role")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, string(marchallObj(t, errMissingToken)), rec.Body.String())
	})

	t.Run("invalid token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/user/role", "garbage.token.here")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, string(marchallObj(t, errInvalidToken)), rec.Body.String())
	})

	t.Run("no role row falls back to student", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodGet, "/api/user/role", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"role":"student"}`, rec.Body.String())
	})

	t.Run("role row wins", func(t *testing.T) {
		fake.reset()
		fake.setSingle("user_roles", `{"role":"admin"}`)
		req, rec := newAuthRequest(http.MethodGet, "/api/user/role", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"role":"admin"}`, rec.Body.String())

		// the lookup is scoped to the caller via their own token
		reqs := fake.recorded()
		require.Len(t, reqs, 2) // token check, then the role query
		assert.Equal(t, "/rest/v1/user_roles", reqs[1].Path)
		assert.Equal(t, "eq."+hero.ID, reqs[1].Query.Get("user_id"))
		assert.Equal(t, token, reqs[1].bearer())
	})
}

func Test_authApi_profile(t *testing.T) {
	app, fake := setup(t)
	hero := fake.addUser("hero@test.cd", "s3cret")
	token := fake.tokenFor(hero)

	t.Run("get with no profile row yet", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodGet, "/api/user/profile", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := jsonBody(t, rec)
		assert.Equal(t, map[string]interface{}{}, body["profile"])
		usr, ok := body["user"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, hero.Email, usr["email"])
	})

	t.Run("get with a profile row", func(t *testing.T) {
		fake.reset()
		fake.setSingle("profiles", `{"id":"`+hero.ID+`","full_name":"Hero"}`)
		req, rec := newAuthRequest(http.MethodGet, "/api/user/profile", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := jsonBody(t, rec)
		profile, ok := body["profile"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Hero", profile["full_name"])
	})

	t.Run("update upserts the row and mirrors metadata", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodPut, "/api/user/profile", token,
			[]byte(`{"id":"spoofed","full_name":"Hero Prime","bio":"hi"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Profile updated"}`, rec.Body.String())

		var upsert, mirror *recordedRequest
		for _, r := range fake.recorded() {
			r := r
			switch {
			case r.Path == "/rest/v1/profiles" && r.Method == http.MethodPost:
				upsert = &r
			case r.Path == "/auth/v1/user" && r.Method == http.MethodPut:
				mirror = &r
			}
		}
		require.NotNil(t, upsert, "profiles upsert never hit the backend")
		require.NotNil(t, mirror, "user metadata was not mirrored")

		assert.Contains(t, upsert.Header.Get("Prefer"), "resolution=merge-duplicates")
		assert.JSONEq(t,
			`{"id":"`+hero.ID+`","full_name":"Hero Prime","bio":"hi"}`,
			string(upsert.Body))
		assert.JSONEq(t, `{"data":{"full_name":"Hero Prime"}}`, string(mirror.Body))
	})

	t.Run("update without mirrored fields skips the metadata call", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodPut, "/api/user/profile", token,
			[]byte(`{"bio":"just a bio"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		for _, r := range fake.recorded() {
			if r.Path == "/auth/v1/user" && r.Method == http.MethodPut {
				t.Errorf("unexpected metadata mirror call")
			}
		}
	})
}
