package echoapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/supabase"
)

type uploadApi struct {
	supa *supabase.Client
}

func registerUploadAPI(g *echo.Group, supa *supabase.Client) {
	api := uploadApi{supa: supa}
	g.POST("/upload/:bucket", api.upload, tokenRequired())
}

// upload buffers one multipart file in memory (bounded by the global body
// limit) and stores it under a key scoped to the caller's identity. Two
// uploads by the same user in the same millisecond collide; accepted.
func (api *uploadApi) upload(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return errNoFileUploaded
	}

	usr, client, err := currentUser(ctx, api.supa)
	if err != nil {
		return err
	}

	f, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}

	bucket := ctx.Param("bucket")
	key := fmt.Sprintf("%s/%d.%s", usr.ID, epochMillis(), fileExt(file.Filename))
	if err := client.UploadObject(ctx.Request().Context(), bucket, key, data, file.Header.Get("Content-Type")); err != nil {
		return errors.Wrapf(err, "uploading to %s", bucket)
	}

	return ctx.JSON(http.StatusOK, echo.Map{"url": client.PublicURL(bucket, key)})
}
