package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/Vitaliy77/month-end-dashboard-sub000/cmd/monthend/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// MONTHEND_* settings may live in a local .env file
	_ = godotenv.Load()

	cmd.SetVersionInfo(version, commit, date)
	os.Exit(cmd.Execute())
}
