// Package main implements the entry point for the DocPolish API server,
// which accepts document beautification tasks, drives them through a
// durable processing pipeline, and serves their results.
package main

import (
	"context"
	"log"
)

// main initializes configuration, logging, the database, object storage,
// the rewrite client and the task pipeline, then runs the HTTP server
// until a shutdown signal arrives.
func main() {
	app, err := initializeApp(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
