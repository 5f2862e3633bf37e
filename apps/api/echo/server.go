package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/aotms/lms-backend/core"
	"github.com/aotms/lms-backend/supabase"
)

type (
	Options struct {
		Addr           string
		Conf           *core.Config
		Logger         core.Logger
		Supabase       *supabase.Client
		Tables         TableSet // generic proxy allow-list; DefaultTables if nil
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Tables == nil {
		opts.Tables = DefaultTables
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	// uploads are buffered in memory; this limit is the only bound
	s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))

	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, translator)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	g := s.app.Group("/api")
	registerAuthAPI(g, s.opts.Supabase, validate)
	registerDataAPI(g, s.opts.Tables, s.opts.Supabase, s.opts.Logger)
	registerCourseAPI(g, s.opts.Supabase)
	registerInstructorAPI(g, s.opts.Supabase, conf, s.opts.Logger)
	registerUploadAPI(g, s.opts.Supabase)
	registerAttendanceAPI(g, s.opts.Supabase)
	registerChatAPI(g, s.opts.Supabase)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "AOTMS LMS Backend is running")
}
