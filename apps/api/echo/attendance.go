package echoapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/supabase"
)

type attendanceApi struct {
	supa *supabase.Client
}

func registerAttendanceAPI(g *echo.Group, supa *supabase.Client) {
	api := attendanceApi{supa: supa}
	g.POST("/attendance/log", api.log, tokenRequired())
	g.GET("/attendance/check-suspension/:userId", api.checkSuspension)
}

// log records at most one attendance row per user per UTC day. The attendance
// table may not be provisioned yet; that is reported as skipped, not an error.
func (api *attendanceApi) log(ctx echo.Context) error {
	usr, client, err := currentUser(ctx, api.supa)
	if err != nil {
		return err
	}
	rc := ctx.Request().Context()
	today := time.Now().UTC().Format("2006-01-02")

	existing, err := client.From("attendance").
		Select("id").
		Eq("user_id", usr.ID).
		Eq("date", today).
		Single().
		Execute(rc)
	if err != nil && supabase.IsMissingTable(err) {
		return ctx.JSON(http.StatusOK, echo.Map{"status": "skipped", "reason": "Table not ready"})
	}
	if existing != nil {
		return ctx.JSON(http.StatusOK, echo.Map{
			"message":       "Attendance already logged for today",
			"alreadyLogged": true,
		})
	}

	var body struct {
		Role string `json:"role"`
	}
	_ = ctx.Bind(&body) // role is optional
	role := body.Role
	if role == "" {
		role = defaultRole
	}

	raw, err := client.From("attendance").Insert(map[string]interface{}{
		"user_id": usr.ID,
		"date":    today,
		"status":  "present",
		"role":    role,
	}).Single().Execute(rc)
	if err != nil {
		if supabase.IsMissingTable(err) {
			return ctx.JSON(http.StatusOK, echo.Map{"status": "skipped", "reason": "Table not ready"})
		}
		return errors.Wrap(err, "logging attendance")
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

// checkSuspension is a public read on the service client.
func (api *attendanceApi) checkSuspension(ctx echo.Context) error {
	raw, err := api.supa.From("suspended_users").
		Select("*").
		Eq("user_id", ctx.Param("userId")).
		Single().
		Execute(ctx.Request().Context())
	if err != nil && !supabase.IsNoRows(err) {
		if supabase.IsMissingTable(err) {
			return ctx.JSON(http.StatusOK, echo.Map{"suspended": false})
		}
		return errors.Wrap(err, "checking suspension")
	}

	if raw == nil {
		raw = json.RawMessage("null")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"suspended": len(raw) > 0 && string(raw) != "null", "details": raw})
}
