package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/supabase"
)

type chatApi struct {
	supa *supabase.Client
}

func registerChatAPI(g *echo.Group, supa *supabase.Client) {
	api := chatApi{supa: supa}
	g.GET("/chat/rooms/:userId", api.rooms)
}

// rooms lists the chat rooms a user participates in, with the participant
// rows embedded via an inner join on the service client.
func (api *chatApi) rooms(ctx echo.Context) error {
	raw, err := api.supa.From("chat_rooms").
		Select("*,participants:chat_participants!inner(user_id)").
		Eq("participants.user_id", ctx.Param("userId")).
		Execute(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing chat rooms")
	}
	return ctx.JSONBlob(http.StatusOK, raw)
}
