package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// debugMode enables verbose logging and gin's debug mode
var debugMode bool

func init() {
	// Load .env file before anything else reads the environment
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}
	debugMode = os.Getenv("DEBUG") == "true"
}
