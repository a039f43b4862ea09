// Package main is the entry point for the IPTV bridge.
package main

import (
	"log"
	"os"

	"iptv-bridge-go/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
