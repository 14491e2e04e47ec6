package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SYNC_ADDR points at a running server, e.g. "localhost:8080".
	// The suite is skipped when it is unset.
	SyncAddr string `envconfig:"SYNC_ADDR"`
	// E2E_DOCUMENT_ID / E2E_OWNER_ID / E2E_COLLABORATOR_ID identify data
	// seeded beforehand with the tools binary (seed-user, create-doc, grant).
	DocumentID     string `envconfig:"E2E_DOCUMENT_ID"`
	OwnerID        string `envconfig:"E2E_OWNER_ID"`
	CollaboratorID string `envconfig:"E2E_COLLABORATOR_ID"`
	// E2E_DEBUG_JSON allows dumping full websocket frames as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
