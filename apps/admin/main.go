package main

import (
	"log"
	"os"

	"github.com/aotms/lms-backend/core"
	"github.com/aotms/lms-backend/supabase"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.LoadConfig()
	if conf.Supabase.URL == "" || conf.Supabase.Key == "" {
		logger.Fatal("supabase URL and key are required")
	}

	cli := commandLine{
		supa: supabase.NewClient(conf.Supabase.URL, conf.Supabase.Key),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
