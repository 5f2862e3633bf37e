package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/supabase"
)

// courseResource describes one course sub-resource: its route segment, the
// table behind it, and the hard-coded listing order. The list below is the
// complete, auditable enumeration; routes are registered from it at startup.
type courseResource struct {
	name      string
	table     string
	orderBy   string
	ascending bool
}

var courseResources = []courseResource{
	{name: "topics", table: "course_topics", orderBy: "order_index", ascending: true},
	{name: "videos", table: "course_videos", orderBy: "order_index", ascending: true},
	{name: "resources", table: "course_resources", orderBy: "order_index", ascending: true},
	{name: "timeline", table: "course_timeline", orderBy: "scheduled_date", ascending: true},
	{name: "announcements", table: "course_announcements", orderBy: "created_at", ascending: false},
}

type courseResourceApi struct {
	supa *supabase.Client
	res  courseResource
}

func registerCourseAPI(g *echo.Group, supa *supabase.Client) {
	for _, res := range courseResources {
		api := courseResourceApi{supa: supa, res: res}
		// reads are public (service client); writes need a bearer token but
		// authorization itself is the backend's row-level security
		g.GET("/courses/:courseId/"+res.name, api.list)
		g.POST("/courses/:courseId/"+res.name, api.create, tokenRequired())
		g.PUT("/"+res.name+"/:id", api.update, tokenRequired())
		g.DELETE("/"+res.name+"/:id", api.remove, tokenRequired())
	}
}

func (api *courseResourceApi) list(ctx echo.Context) error {
	raw, err := api.supa.From(api.res.table).
		Select("*").
		Eq("course_id", ctx.Param("courseId")).
		Order(api.res.orderBy, api.res.ascending).
		Execute(ctx.Request().Context())
	if err != nil {
		// a missing table never surfaces as an error for these routes
		if supabase.IsMissingTable(err) {
			return ctx.JSON(http.StatusOK, []interface{}{})
		}
		return errors.Wrapf(err, "listing %s", api.res.table)
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

func (api *courseResourceApi) create(ctx echo.Context) error {
	body, _, err := bindRawBody(ctx)
	if err != nil {
		return err
	}
	raw, err := api.supa.WithToken(contextToken(ctx)).
		From(api.res.table).
		Insert(body).
		Single().
		Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrapf(err, "creating %s row", api.res.table)
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

func (api *courseResourceApi) update(ctx echo.Context) error {
	body, _, err := bindRawBody(ctx)
	if err != nil {
		return err
	}
	raw, err := api.supa.WithToken(contextToken(ctx)).
		From(api.res.table).
		Update(body).
		Eq("id", ctx.Param("id")).
		Single().
		Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrapf(err, "updating %s row", api.res.table)
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

func (api *courseResourceApi) remove(ctx echo.Context) error {
	_, err := api.supa.WithToken(contextToken(ctx)).
		From(api.res.table).
		Delete().
		Eq("id", ctx.Param("id")).
		Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrapf(err, "deleting %s row", api.res.table)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}
