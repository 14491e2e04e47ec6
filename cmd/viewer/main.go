package main

import (
	"encoding/json"
	"fmt"
	"log"

	"doc-sync/domain"
	"doc-sync/internal"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (Master) holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Printf("🌐 Viewer started at http://localhost:%d/inspect\n", config.DebugPort)

	// 3. Start Debug Server Only
	database.StartDebugServer(db, config.DebugPort, "/inspect", DocumentMapper)
}

// Copy of the Master's DocumentMapper to keep the viewer independent
func DocumentMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	var doc domain.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		return row
	}
	if doc.ID != (domain.DocumentID{}) {
		row.EntityID = doc.ID.String()
		row.Namespace = doc.Name
		row.Detail = fmt.Sprintf("owner=%s content=%d bytes", doc.OwnerID, len(doc.Content))
		row.Timestamp = doc.UpdatedAt.Format("15:04:05")
	}
	return row
}
