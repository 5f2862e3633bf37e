package echoapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/core"
	"github.com/aotms/lms-backend/supabase"
)

const resumeBucket = "instructor-resumes"

type instructorApi struct {
	supa   *supabase.Client
	conf   *core.Config
	logger core.Logger
}

func registerInstructorAPI(g *echo.Group, supa *supabase.Client, conf *core.Config, logger core.Logger) {
	api := instructorApi{
		supa:   supa,
		conf:   conf,
		logger: logger,
	}

	ig := g.Group("/instructor")
	ig.POST("/register", api.register)
	ig.GET("/courses", api.courses, tokenRequired())
}

// register is a privileged flow on the service client: it creates the account,
// stores the resume and files the application in one request, before any user
// token exists.
func (api *instructorApi) register(ctx echo.Context) error {
	email := ctx.FormValue("email")
	fullName := ctx.FormValue("fullName")
	areaOfExpertise := ctx.FormValue("areaOfExpertise")
	customExpertise := ctx.FormValue("customExpertise")
	rc := ctx.Request().Context()

	res, err := api.supa.SignUp(rc, supabase.SignUpParams{
		Email:      email,
		Password:   ctx.FormValue("password"),
		Data:       map[string]interface{}{"full_name": fullName},
		RedirectTo: api.conf.FrontendBaseURL + "/instructor",
	})
	if err != nil {
		if aerr, ok := supabase.IsAuthError(err); ok {
			return echo.NewHTTPError(http.StatusInternalServerError, aerr.Message)
		}
		return errors.Wrap(err, "registering instructor")
	}
	if res.User == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "User registration failed")
	}
	userID := res.User.ID

	// resume upload is best-effort: a failed upload is logged, the
	// application is still filed
	var resumeURL interface{}
	if file, ferr := ctx.FormFile("resume"); ferr == nil {
		key := fmt.Sprintf("%s/%d.%s", userID, epochMillis(), fileExt(file.Filename))
		if uerr := api.uploadResume(ctx, file, key); uerr != nil {
			if api.logger != nil {
				api.logger.Error("resume upload failed", uerr)
			}
		} else {
			resumeURL = key
		}
	}

	expertise := areaOfExpertise
	var custom interface{}
	if areaOfExpertise == "Other" {
		expertise = customExpertise
		custom = customExpertise
	}
	_, err = api.supa.From("instructor_applications").Insert(map[string]interface{}{
		"user_id":           userID,
		"full_name":         fullName,
		"email":             email,
		"area_of_expertise": expertise,
		"custom_expertise":  custom,
		"experience":        ctx.FormValue("experience"),
		"resume_url":        resumeURL,
	}).Execute(rc)
	if err != nil {
		// no rollback of the created account; the application can be re-filed
		if api.logger != nil {
			api.logger.Error("application insert failed", err)
		}
	}

	return ctx.JSON(http.StatusOK, echo.Map{
		"message": "Instructor application submitted successfully",
		"user":    res.UserRaw,
	})
}

func (api *instructorApi) uploadResume(ctx echo.Context, file *multipart.FileHeader, key string) error {
	f, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "opening resume")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading resume")
	}
	return api.supa.UploadObject(ctx.Request().Context(), resumeBucket, key, data, file.Header.Get("Content-Type"))
}

func (api *instructorApi) courses(ctx echo.Context) error {
	usr, client, err := currentUser(ctx, api.supa)
	if err != nil {
		return err
	}
	raw, err := client.From("courses").
		Select("*").
		Eq("instructor_id", usr.ID).
		Order("created_at", false).
		Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing instructor courses")
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}

func epochMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func fileExt(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return name
	}
	return ext
}
