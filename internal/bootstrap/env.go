package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
)

// Loadenv reads .env into the process environment before the fx graph is
// built. Missing files are fine: deployments set real environment variables.
func Loadenv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on the process environment")
	}
}
