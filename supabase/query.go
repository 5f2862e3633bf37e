package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const restPath = "/rest/v1/"

// Query is a builder for a single PostgREST table operation. Zero or one of
// Insert/Upsert/Update/Delete may be called; without any, Execute performs a
// select.
type Query struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	order   string
	limit   int
	single  bool
	method  string
	body    interface{}
	prefer  []string
}

// From starts a query scoped to table. The table name is forwarded as-is;
// allow-listing is the route layer's responsibility.
func (c *Client) From(table string) *Query {
	return &Query{
		client:  c,
		table:   table,
		columns: "*",
		filters: url.Values{},
		limit:   -1,
		method:  http.MethodGet,
	}
}

func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq filters on column = value. Also accepts embedded-resource paths such as
// "participants.user_id".
func (q *Query) Eq(column, value string) *Query {
	q.filters.Set(column, "eq."+value)
	return q
}

func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = column + "." + dir
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Single requests exactly one row; zero rows surface as a PGRST116 error.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// Insert posts body (a single object or an array) and returns the created
// representation.
func (q *Query) Insert(body interface{}) *Query {
	q.method = http.MethodPost
	q.body = body
	q.prefer = []string{"return=representation"}
	return q
}

// Upsert inserts body, merging on conflict. No representation is requested.
func (q *Query) Upsert(body interface{}) *Query {
	q.method = http.MethodPost
	q.body = body
	q.prefer = []string{"resolution=merge-duplicates", "return=minimal"}
	return q
}

// Update patches the rows matched by the filters and returns the updated
// representation.
func (q *Query) Update(body interface{}) *Query {
	q.method = http.MethodPatch
	q.body = body
	q.prefer = []string{"return=representation"}
	return q
}

func (q *Query) Delete() *Query {
	q.method = http.MethodDelete
	q.body = nil
	q.prefer = nil
	return q
}

// Execute runs the query and returns the raw JSON representation, which
// handlers pass through to HTTP callers unchanged.
func (q *Query) Execute(ctx context.Context) (json.RawMessage, error) {
	query := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	if q.method != http.MethodDelete {
		query.Set("select", q.columns)
	}
	if q.order != "" {
		query.Set("order", q.order)
	}
	if q.limit >= 0 {
		query.Set("limit", strconv.Itoa(q.limit))
	}

	body, err := marshalBody(q.body)
	if err != nil {
		return nil, err
	}
	req, err := q.client.newRequest(ctx, q.method, restPath+q.table, query, body)
	if err != nil {
		return nil, err
	}
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if len(q.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(q.prefer, ","))
	}

	resp, err := q.client.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, restError(resp)
	}
	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
