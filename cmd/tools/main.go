package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"doc-sync/auth"
	"doc-sync/domain"
	"doc-sync/infrastructure/storage"
	"doc-sync/internal"
	"doc-sync/services"
)

const usage = `Usage: tools <command> [flags]

Commands:
  seed-user   -email -password       create a user
  token       -email                 print a bearer token for a user
  create-doc  -owner -name           create a document owned by a user (email)
  grant       -doc -owner -email     add a collaborator to a document
  revoke      -doc -owner -email     remove a collaborator from a document
  list                               list all documents
  search      -query [-limit]        full-text search over document content
`

// The tools binary runs against the same Badger store as the server, so the
// server must be stopped (or the store opened with a bypassed lock guard).
func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromLevel(slog.LevelWarn)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer blugeWriter.Close()

	store := storage.NewStore(db, blugeWriter, logger)
	ctx := context.Background()

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "seed-user":
		seedUser(ctx, store, args)
	case "token":
		printToken(ctx, store, config, args)
	case "create-doc":
		createDoc(ctx, store, args)
	case "grant":
		mutateCollaborators(ctx, store, args, true)
	case "revoke":
		mutateCollaborators(ctx, store, args, false)
	case "list":
		listDocuments(ctx, store)
	case "search":
		searchDocuments(ctx, store, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func seedUser(ctx context.Context, store *storage.Store, args []string) {
	fs := flag.NewFlagSet("seed-user", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "user password")
	_ = fs.Parse(args)

	if err := auth.ValidateSeedUser(auth.SeedUser{Email: *email, Password: *password}); err != nil {
		log.Fatalf("Invalid user: %v", err)
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Hashing failed: %v", err)
	}
	user, err := store.Users.CreateUser(ctx, *email, hash)
	if err != nil {
		log.Fatalf("Create user failed: %v", err)
	}
	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
}

func printToken(ctx context.Context, store *storage.Store, config internal.Config, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	_ = fs.Parse(args)

	user, err := store.UserByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("Unknown user: %v", err)
	}
	token, err := auth.GenerateToken(user.ID, config.AuthTokenDuration)
	if err != nil {
		log.Fatalf("Token generation failed: %v", err)
	}
	fmt.Println(token)
}

func createDoc(ctx context.Context, store *storage.Store, args []string) {
	fs := flag.NewFlagSet("create-doc", flag.ExitOnError)
	ownerEmail := fs.String("owner", "", "owner email")
	name := fs.String("name", "untitled", "document name")
	_ = fs.Parse(args)

	owner, err := store.UserByEmail(ctx, *ownerEmail)
	if err != nil {
		log.Fatalf("Unknown owner: %v", err)
	}
	doc, err := store.Documents.CreateDocument(ctx, *name, owner.ID)
	if err != nil {
		log.Fatalf("Create document failed: %v", err)
	}
	fmt.Printf("Created document %q (%s)\n", doc.Name, doc.ID)
}

// mutateCollaborators goes through the same access service as the live
// server, so owner-only enforcement applies to operators too.
func mutateCollaborators(ctx context.Context, store *storage.Store, args []string, grant bool) {
	name := "revoke"
	if grant {
		name = "grant"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	docID := fs.String("doc", "", "document id")
	ownerEmail := fs.String("owner", "", "owner email")
	email := fs.String("email", "", "collaborator email")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*docID)
	if err != nil {
		log.Fatalf("Invalid document id: %v", err)
	}
	owner, err := store.UserByEmail(ctx, *ownerEmail)
	if err != nil {
		log.Fatalf("Unknown owner: %v", err)
	}

	access := services.NewAccessService(store, store)
	if grant {
		err = access.Grant(ctx, owner.ID, id, *email)
	} else {
		err = access.Revoke(ctx, owner.ID, id, *email)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", name, err)
	}
	fmt.Printf("%s %s on document %s\n", name, *email, id)
}

func listDocuments(ctx context.Context, store *storage.Store) {
	docs, err := store.Documents.ListDocuments(ctx)
	if err != nil {
		log.Fatalf("List failed: %v", err)
	}
	renderDocuments(ctx, store, docs)
}

func searchDocuments(ctx context.Context, store *storage.Store, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "full-text query")
	limit := fs.Int("limit", 20, "maximum number of results")
	_ = fs.Parse(args)

	docs, total, err := store.Documents.SearchDocuments(ctx, *query, *limit)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	fmt.Printf("%d match(es)\n", total)
	renderDocuments(ctx, store, docs)
}

func renderDocuments(ctx context.Context, store *storage.Store, docs []domain.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Owner", "Collaborators", "Size", "Updated"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, doc := range docs {
		ownerEmail := doc.OwnerID.String()
		if owner, err := store.UserByID(ctx, doc.OwnerID); err == nil {
			ownerEmail = owner.Email
		}
		collaborators, _ := store.ListCollaborators(ctx, doc.ID)
		table.Append([]string{
			doc.ID.String(),
			doc.Name,
			ownerEmail,
			strconv.Itoa(len(collaborators)),
			strconv.Itoa(len(doc.Content)),
			doc.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
}
