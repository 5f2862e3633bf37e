package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (local; default), TEST, QA, PROD
	AppName  string
	Build    string

	Server struct {
		Addr      string
		Host      string
		BodyLimit string
	}

	// Supabase is the upstream backend-as-a-service. Key is the service
	// credential; per-request caller tokens are bound at the client level.
	Supabase struct {
		URL string
		Key string
	}

	FrontendBaseURL string
	RollbarToken    string
}

// LoadConfig reads the configuration once at process start: defaults, then an
// optional config/.env.<env> file, then ENV-prefixed environment variables.
// The returned value is never mutated afterwards; it is passed by injection
// into the server and clients.
func LoadConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "AOTMS")
	v.SetDefault("build", "dev")
	v.SetDefault("serverAddr", ":5000")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("bodyLimit", "50M")
	v.SetDefault("supabaseUrl", "")
	v.SetDefault("supabaseKey", "")
	v.SetDefault("frontendBaseUrl", "http://localhost:5173")
	v.SetDefault("rollbarToken", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		Env:             env,
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		FrontendBaseURL: v.GetString("frontendBaseUrl"),
		RollbarToken:    v.GetString("rollbarToken"),
	}
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.BodyLimit = v.GetString("bodyLimit")
	conf.Supabase.URL = strings.TrimRight(v.GetString("supabaseUrl"), "/")
	conf.Supabase.Key = v.GetString("supabaseKey")
	return conf
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests... this breaks our code...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
