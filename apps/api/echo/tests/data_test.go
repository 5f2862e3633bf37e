package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_dataApi_allowList(t *testing.T) {
	app, fake := setup(t)
	student := fake.addUser("hero@test.cd", "s3cret")
	token := fake.tokenFor(student)

	forbidden := marchallObj(t, errTableForbidden)
	missingToken := marchallObj(t, errMissingToken)

	tests := []httpTest{
		// not in the allow-list: 403 before anything else, token or not
		{name: "GET unknown table", method: http.MethodGet, path: "/api/data/secrets", token: token, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "POST unknown table", method: http.MethodPost, path: "/api/data/secrets", token: token, body: []byte(`{"a":1}`), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "PUT unknown table", method: http.MethodPut, path: "/api/data/secrets/1", token: token, body: []byte(`{"a":1}`), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "DELETE unknown table", method: http.MethodDelete, path: "/api/data/secrets/1", token: token, wantCode: http.StatusForbidden, wantData: forbidden},
		// casing tricks do not bypass the list
		{name: "GET cased table", method: http.MethodGet, path: "/api/data/Exams", token: token, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "GET unknown table without token", method: http.MethodGet, path: "/api/data/secrets", wantCode: http.StatusForbidden, wantData: forbidden},
		// allow-listed but no token: 401, still before any backend call
		{name: "GET without token", method: http.MethodGet, path: "/api/data/exams", wantCode: http.StatusUnauthorized, wantData: missingToken},
		{name: "POST without token", method: http.MethodPost, path: "/api/data/exams", body: []byte(`{"a":1}`), wantCode: http.StatusUnauthorized, wantData: missingToken},
		{name: "PUT without token", method: http.MethodPut, path: "/api/data/exams/1", body: []byte(`{"a":1}`), wantCode: http.StatusUnauthorized, wantData: missingToken},
		{name: "DELETE without token", method: http.MethodDelete, path: "/api/data/exams/1", wantCode: http.StatusUnauthorized, wantData: missingToken},
		{name: "RPC without token", method: http.MethodPost, path: "/api/rpc/compute_leaderboard", wantCode: http.StatusUnauthorized, wantData: missingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.reset()
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			// both gates reject before any backend call is made
			assert.Empty(t, fake.recorded())
		})
	}
}

func Test_dataApi_list(t *testing.T) {
	app, fake := setup(t)
	student := fake.addUser("hero@test.cd", "s3cret")
	token := fake.tokenFor(student)

	t.Run("rows pass through", func(t *testing.T) {
		fake.reset()
		fake.setRows("exams", `[{"id":1,"title":"Midterm"},{"id":2,"title":"Final"}]`)

		req, rec := newAuthRequest(http.MethodGet, "/api/data/exams", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"id":1,"title":"Midterm"},{"id":2,"title":"Final"}]`, rec.Body.String())
	})

	t.Run("sort and order forwarded unchanged", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodGet, "/api/data/exams?sort=scheduled_date&order=asc", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/rest/v1/exams", reqs[0].Path)
		// the proxy does not re-sort; it forwards the ordering to the backend
		assert.Equal(t, "scheduled_date.asc", reqs[0].Query.Get("order"))
		// the caller's token scopes the call, not the service credential
		assert.Equal(t, token, reqs[0].bearer())
	})

	t.Run("order defaults to descending when not asc", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodGet, "/api/data/exams?sort=created_at", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, "created_at.desc", reqs[0].Query.Get("order"))
	})

	t.Run("limit forwarded", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodGet, "/api/data/exams?limit=5", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, "5", reqs[0].Query.Get("limit"))
		assert.Empty(t, reqs[0].Query.Get("order"))
	})

	t.Run("missing relation becomes empty list", func(t *testing.T) {
		fake.reset()
		fake.setTableError("leaderboard", http.StatusNotFound, "PGRST205",
			"Could not find the table 'public.leaderboard' in the schema cache")
		req, rec := newAuthRequest(http.MethodGet, "/api/data/leaderboard", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("other backend errors surface as 500 with the backend message", func(t *testing.T) {
		fake.reset()
		fake.setTableError("exams", http.StatusForbidden, "42501", "permission denied for table exams")

		req, rec := newAuthRequest(http.MethodGet, "/api/data/exams", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"permission denied for table exams"}`, rec.Body.String())
	})
}

func Test_dataApi_create(t *testing.T) {
	app, fake := setup(t)
	student := fake.addUser("hero@test.cd", "s3cret")
	token := fake.tokenFor(student)

	t.Run("single object in, single object out", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodPost, "/api/data/exams", token, []byte(`{"title":"T"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"title":"T"}`, rec.Body.String())

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodPost, reqs[0].Method)
		assert.Contains(t, reqs[0].Header.Get("Accept"), "vnd.pgrst.object")
		assert.Equal(t, token, reqs[0].bearer())
	})

	t.Run("array in, array out", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodPost, "/api/data/exams", token, []byte(`[{"title":"A"},{"title":"B"}]`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"title":"A"},{"title":"B"}]`, rec.Body.String())

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.NotContains(t, reqs[0].Header.Get("Accept"), "vnd.pgrst.object")
	})

	t.Run("payload forwarded without a field whitelist", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodPost, "/api/data/exams", token, []byte(`{"title":"T","anything":{"nested":true}}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.JSONEq(t, `{"title":"T","anything":{"nested":true}}`, string(reqs[0].Body))
	})
}

func Test_dataApi_updateDelete(t *testing.T) {
	app, fake := setup(t)
	student := fake.addUser("hero@test.cd", "s3cret")
	token := fake.tokenFor(student)

	t.Run("update by id", func(t *testing.T) {
		fake.reset()
		fake.setSingle("exams", `{"id":3,"title":"Renamed"}`)

		req, rec := newAuthRequest(http.MethodPut, "/api/data/exams/3", token, []byte(`{"title":"Renamed"}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":3,"title":"Renamed"}`, rec.Body.String())

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodPatch, reqs[0].Method)
		assert.Equal(t, "eq.3", reqs[0].Query.Get("id"))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		fake.reset()
		// no row behind that id; both calls still succeed
		for i := 0; i < 2; i++ {
			req, rec := newAuthRequest(http.MethodDelete, "/api/data/exams/99", token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		}
		reqs := fake.recorded()
		require.Len(t, reqs, 2)
		assert.Equal(t, http.MethodDelete, reqs[0].Method)
		assert.Equal(t, "eq.99", reqs[0].Query.Get("id"))
	})
}

func Test_dataApi_rpc(t *testing.T) {
	app, fake := setup(t)
	student := fake.addUser("hero@test.cd", "s3cret")
	token := fake.tokenFor(student)

	t.Run("function name and args pass through", func(t *testing.T) {
		fake.reset()
		fake.setRPC("compute_leaderboard", `[{"user_id":"u1","score":97}]`)

		req, rec := newAuthRequest(http.MethodPost, "/api/rpc/compute_leaderboard", token, []byte(`{"exam_id":7}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"user_id":"u1","score":97}]`, rec.Body.String())

		reqs := fake.recorded()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/rest/v1/rpc/compute_leaderboard", reqs[0].Path)
		assert.JSONEq(t, `{"exam_id":7}`, string(reqs[0].Body))
		assert.Equal(t, token, reqs[0].bearer())
	})

	t.Run("void function returns null", func(t *testing.T) {
		fake.reset()
		req, rec := newAuthRequest(http.MethodPost, "/api/rpc/reset_progress", token, []byte(`{}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "null", rec.Body.String())
	})
}
