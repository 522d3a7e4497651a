package main

import (
	"github.com/joho/godotenv"

	"command-center/internal/cli"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	cli.Execute()
}
