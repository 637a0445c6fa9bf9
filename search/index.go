// Package search maintains a full-text index of chat messages for the
// operator dashboard. Indexing is asynchronous and best-effort: the badger
// store stays the source of truth, the index only accelerates lookups.
package search

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"

	"studio-live/domain"
)

type Hit struct {
	MessageID      string
	ConversationID string
	SenderID       string
	Content        string
	At             time.Time
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Open creates or reopens the index under path.
func Open(path string, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

func (x *MessageIndex) Close() error {
	return x.writer.Close()
}

// Index upserts one message. Keyed by message ID so re-indexing is idempotent.
func (x *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("conversation_id", message.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", message.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("at", strconv.FormatInt(message.CreatedAt.UnixNano(), 10)).StoreValue())
	return x.writer.Update(doc.ID(), doc)
}

// Search runs a match query over message content, optionally scoped to one
// conversation, returning at most limit hits ranked by relevance.
func (x *MessageIndex) Search(ctx context.Context, terms, conversationID string, limit int) ([]Hit, error) {
	reader, err := x.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			x.log.Warn("Failed to close index reader", "err", err)
		}
	}()

	var query bluge.Query
	contentQuery := bluge.NewMatchQuery(terms).SetField("content")
	if conversationID != "" {
		query = bluge.NewBooleanQuery().
			AddMust(contentQuery).
			AddMust(bluge.NewTermQuery(conversationID).SetField("conversation_id"))
	} else {
		query = contentQuery
	}

	request := bluge.NewTopNSearch(limit, query)
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "conversation_id":
				hit.ConversationID = string(value)
			case "sender_id":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			case "at":
				if nanos, err := strconv.ParseInt(string(value), 10, 64); err == nil {
					hit.At = time.Unix(0, nanos).UTC()
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
