package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/supabase"
)

const defaultRole = "student"

type authApi struct {
	supa     *supabase.Client
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, supa *supabase.Client, validate *validator.Validate) {
	api := authApi{
		supa:     supa,
		validate: validate,
	}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/logout", api.logout)

	// authed endpoints
	ug := g.Group("/user", tokenRequired())
	ug.GET("/role", api.role)
	ug.GET("/profile", api.getProfile)
	ug.PUT("/profile", api.updateProfile)
}

// Handlers

// signup runs on the service-level client: no user token exists yet.
func (api *authApi) signup(ctx echo.Context) error {
	var data SignupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.supa.SignUp(ctx.Request().Context(), supabase.SignUpParams{
		Email:    data.Email,
		Password: data.Password,
		Data:     map[string]interface{}{"full_name": data.FullName},
	})
	if err != nil {
		if aerr, ok := supabase.IsAuthError(err); ok {
			return echo.NewHTTPError(http.StatusBadRequest, aerr.Message)
		}
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSONBlob(http.StatusOK, res.Raw)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	session, err := api.supa.SignInWithPassword(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if aerr, ok := supabase.IsAuthError(err); ok {
			// keep the backend's reason for debuggability
			return echo.NewHTTPError(http.StatusUnauthorized, aerr.Message)
		}
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSONBlob(http.StatusOK, session)
}

// logout is idempotent: without a token it still succeeds, with one it
// invalidates that session best-effort.
func (api *authApi) logout(ctx echo.Context) error {
	if token := bearerToken(ctx); token != "" {
		_ = api.supa.WithToken(token).SignOut(ctx.Request().Context())
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

func (api *authApi) role(ctx echo.Context) error {
	usr, client, err := currentUser(ctx, api.supa)
	if err != nil {
		return err
	}

	raw, err := client.From("user_roles").
		Select("role").
		Eq("user_id", usr.ID).
		Single().
		Execute(ctx.Request().Context())
	if err != nil && !supabase.IsNoRows(err) {
		return errors.Wrap(err, "fetching role")
	}

	role := defaultRole
	if raw != nil {
		var row struct {
			Role string `json:"role"`
		}
		if err := json.Unmarshal(raw, &row); err == nil && row.Role != "" {
			role = row.Role
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"role": role})
}

func (api *authApi) getProfile(ctx echo.Context) error {
	usr, client, err := currentUser(ctx, api.supa)
	if err != nil {
		return err
	}

	raw, err := client.From("profiles").
		Select("*").
		Eq("id", usr.ID).
		Single().
		Execute(ctx.Request().Context())
	if err != nil && !supabase.IsNoRows(err) { // no row is OK for new users
		return errors.Wrap(err, "fetching profile")
	}
	if raw == nil {
		raw = json.RawMessage("{}")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"profile": raw, "user": usr.Raw})
}

// updateProfile upserts the caller's profile row and mirrors full_name and
// avatar_url into the identity provider's metadata, all with the caller's own
// token-bound client.
func (api *authApi) updateProfile(ctx echo.Context) error {
	var updates map[string]interface{}
	if err := ctx.Bind(&updates); err != nil {
		return errors.Wrap(err, "binding profile updates")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}

	usr, client, err := currentUser(ctx, api.supa)
	if err != nil {
		return err
	}
	rc := ctx.Request().Context()

	updates["id"] = usr.ID // never trust a client-supplied id
	if _, err := client.From("profiles").Upsert(updates).Execute(rc); err != nil {
		return errors.Wrap(err, "upserting profile")
	}

	meta := map[string]interface{}{}
	for _, key := range []string{"full_name", "avatar_url"} {
		if v, ok := updates[key]; ok {
			meta[key] = v
		}
	}
	if len(meta) > 0 {
		if _, err := client.UpdateUser(rc, meta); err != nil {
			return errors.Wrap(err, "mirroring profile into user metadata")
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Profile updated"})
}
