package main

import (
	"log"
	"os"

	echoapi "github.com/aotms/lms-backend/apps/api/echo"
	"github.com/aotms/lms-backend/core"
	logsvc "github.com/aotms/lms-backend/services/logger"
	"github.com/aotms/lms-backend/supabase"
)

func main() {
	conf := core.LoadConfig()
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var logger core.Logger
	if conf.Debug || conf.TestMode || conf.RollbarToken == "" {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	if conf.Supabase.URL == "" || conf.Supabase.Key == "" {
		logger.Fatal("supabase URL and key are required")
	}
	supa := supabase.NewClient(conf.Supabase.URL, conf.Supabase.Key)

	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:     conf.Server.Addr,
			Conf:     conf,
			Logger:   logger,
			Supabase: supa,
		},
	)
	app.Start()
}
