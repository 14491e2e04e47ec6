package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"doc-sync/domain"
	"doc-sync/errors"
)

const documentPrefix = "doc:"

type IDocumentRepository interface {
	CreateDocument(ctx context.Context, name string, owner domain.UserID) (domain.Document, error)
	GetDocument(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	UpdateContent(ctx context.Context, id domain.DocumentID, content string) error
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	SearchDocuments(ctx context.Context, query string, limit int) ([]domain.Document, uint64, error)
}

// DocumentRepository persists documents in BadgerDB under "doc:{uuid}" keys
// and mirrors their content into a Bluge full-text index, so operators can
// search document bodies without scanning the store.
type DocumentRepository struct {
	db     *badger.DB
	writer *bluge.Writer
	log    *slog.Logger
}

func NewDocumentRepository(db *badger.DB, writer *bluge.Writer, log *slog.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, writer: writer, log: log}
}

func documentKey(id domain.DocumentID) []byte {
	return []byte(documentPrefix + id.String())
}

func (r *DocumentRepository) CreateDocument(_ context.Context, name string, owner domain.UserID) (domain.Document, error) {
	now := time.Now().UTC()
	doc := domain.Document{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey(doc.ID), data)
	})
	if err != nil {
		return domain.Document{}, err
	}

	return doc, r.index(doc)
}

func (r *DocumentRepository) GetDocument(_ context.Context, id domain.DocumentID) (domain.Document, error) {
	var doc domain.Document
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.Document{}, fmt.Errorf("%w: document %s", errors.ErrNotFound, id)
		}
		return domain.Document{}, err
	}
	return doc, nil
}

// UpdateContent replaces the persisted content with the given value. The
// read-modify-write happens in a single Badger transaction; the index is
// refreshed afterwards.
func (r *DocumentRepository) UpdateContent(_ context.Context, id domain.DocumentID, content string) error {
	var doc domain.Document
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(id))
		if err != nil {
			return err
		}
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return err
		}

		doc.Content = content
		doc.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return txn.Set(documentKey(id), data)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: document %s", errors.ErrNotFound, id)
		}
		return err
	}
	return r.index(doc)
}

func (r *DocumentRepository) ListDocuments(_ context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(documentPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc domain.Document
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return docs, err
}

// SearchDocuments runs a full-text match query over indexed content and
// resolves the hits back to their stored documents.
func (r *DocumentRepository) SearchDocuments(ctx context.Context, query string, limit int) ([]domain.Document, uint64, error) {
	reader, err := r.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	matchQuery := bluge.NewMatchQuery(query).SetField("content")
	search := bluge.NewTopNSearch(limit, matchQuery).WithStandardAggregations()

	iterator, err := reader.Search(ctx, search)
	if err != nil {
		return nil, 0, err
	}

	var docs []domain.Document
	for match, err := iterator.Next(); match != nil; match, err = iterator.Next() {
		if err != nil {
			return nil, 0, err
		}

		var docID domain.DocumentID
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				docID, err = uuid.Parse(string(value))
				return false
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		if err != nil {
			return nil, 0, err
		}

		doc, err := r.GetDocument(ctx, docID)
		if err != nil {
			// Index slightly ahead or behind the store: skip the orphan.
			r.log.Debug("Indexed document missing from store", "document_id", docID)
			continue
		}
		docs = append(docs, doc)
	}

	return docs, iterator.Aggregations().Count(), nil
}

func (r *DocumentRepository) index(doc domain.Document) error {
	indexed := bluge.NewDocument(doc.ID.String()).
		AddField(bluge.NewKeywordField("name", doc.Name).StoreValue()).
		AddField(bluge.NewTextField("content", doc.Content))
	return r.writer.Update(indexed.ID(), indexed)
}
