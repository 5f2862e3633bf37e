package echoapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/core"
	"github.com/aotms/lms-backend/supabase"
)

// TableSet is a fixed set of table names the generic proxy will operate on.
// It is built once at startup and never mutated.
type TableSet map[string]struct{}

func NewTableSet(names ...string) TableSet {
	s := make(TableSet, len(names))
	for _, name := range names {
		s[name] = struct{}{}
	}
	return s
}

// Contains is an exact, case-sensitive match; "Exams" is not "exams".
func (s TableSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// DefaultTables is the production allow-list. Everything else is rejected with
// a 403 before any backend call; row visibility within these tables is the
// backend's row-level security, not ours.
var DefaultTables = NewTableSet(
	"exams",
	"question_bank",
	"leaderboard",
	"guest_credentials",
	"mock_test_configs",
	"student_exam_results",
	"profiles",
	"user_roles",
	"courses",
	"security_events",
	"system_logs",
	"instructor_applications",
	"exam_schedules",
	"exam_rules",
	"instructor_progress",
	"course_topics",
	"mock_test_assignments",
	"leaderboard_audit",
	"course_enrollments",
	"live_exams",
	"live_exam_attempts",
	"announcements",
	"attendance",
	"suspended_users",
)

type dataApi struct {
	supa   *supabase.Client
	tables TableSet
	logger core.Logger
}

func registerDataAPI(g *echo.Group, tables TableSet, supa *supabase.Client, logger core.Logger) {
	api := dataApi{
		supa:   supa,
		tables: tables,
		logger: logger,
	}

	g.GET("/data/:table", api.list)
	g.POST("/data/:table", api.create)
	g.PUT("/data/:table/:id", api.update)
	g.DELETE("/data/:table/:id", api.remove)

	// no function-name allow-list, unlike the table proxy. Known gap, kept
	// for parity: any authenticated caller may invoke any stored procedure.
	g.POST("/rpc/:function", api.rpc)
}

// callerClient runs the proxy's two gate checks in contract order: allow-list
// first (403), then token presence (401), both before any backend call. The
// returned client is bound to the caller's token so the backend's RLS decides
// row visibility.
func (api *dataApi) callerClient(ctx echo.Context) (*supabase.Client, error) {
	if !api.tables.Contains(ctx.Param("table")) {
		return nil, errTableForbidden
	}
	token := bearerToken(ctx)
	if token == "" {
		return nil, errMissingToken
	}
	return api.supa.WithToken(token), nil
}

func (api *dataApi) list(ctx echo.Context) error {
	client, err := api.callerClient(ctx)
	if err != nil {
		return err
	}
	table := ctx.Param("table")

	q := client.From(table).Select("*")
	// sort/order/limit are forwarded as-is; the backend schema is the only
	// safety net for unknown columns
	if sort := ctx.QueryParam("sort"); sort != "" {
		q = q.Order(sort, ctx.QueryParam("order") == "asc")
	}
	if limit := ctx.QueryParam("limit"); limit != "" {
		if n, convErr := strconv.Atoi(limit); convErr == nil {
			q = q.Limit(n)
		}
	}

	raw, err := q.Execute(ctx.Request().Context())
	if err != nil {
		if supabase.IsMissingTable(err) {
			if api.logger != nil {
				api.logger.Warn("table not provisioned, returning empty list", map[string]interface{}{"table": table})
			}
			return ctx.JSON(http.StatusOK, []interface{}{})
		}
		return errors.Wrapf(err, "listing %s", table)
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

func (api *dataApi) create(ctx echo.Context) error {
	client, err := api.callerClient(ctx)
	if err != nil {
		return err
	}
	table := ctx.Param("table")

	body, isArray, err := bindRawBody(ctx)
	if err != nil {
		return err
	}
	q := client.From(table).Insert(body)
	if !isArray {
		// single object in, single object out (not wrapped in an array)
		q = q.Single()
	}
	raw, err := q.Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrapf(err, "inserting into %s", table)
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

func (api *dataApi) update(ctx echo.Context) error {
	client, err := api.callerClient(ctx)
	if err != nil {
		return err
	}
	table := ctx.Param("table")

	body, _, err := bindRawBody(ctx)
	if err != nil {
		return err
	}
	// zero matched rows (bad id, or hidden by RLS) is a backend error here,
	// not a 404; callers rely on that
	raw, err := client.From(table).
		Update(body).
		Eq("id", ctx.Param("id")).
		Single().
		Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrapf(err, "updating %s", table)
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

func (api *dataApi) remove(ctx echo.Context) error {
	client, err := api.callerClient(ctx)
	if err != nil {
		return err
	}
	table := ctx.Param("table")

	// idempotent: deleting zero rows is still a success
	_, err = client.From(table).
		Delete().
		Eq("id", ctx.Param("id")).
		Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *dataApi) rpc(ctx echo.Context) error {
	token := bearerToken(ctx)
	if token == "" {
		return errMissingToken
	}
	function := ctx.Param("function")

	args, _, err := bindRawBody(ctx)
	if err != nil {
		return err
	}
	raw, err := api.supa.WithToken(token).RPC(ctx.Request().Context(), function, args)
	if err != nil {
		return errors.Wrapf(err, "invoking rpc %s", function)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}
