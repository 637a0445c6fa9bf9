// opsctl is the operator's terminal companion: it reads the store and the
// message index directly to list conversations, dump a thread or search
// message content without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"studio-live/domain"
	"studio-live/repositories"
	"studio-live/search"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	BlugeFilepath  string `envconfig:"BLUGE_FILEPATH" required:"true"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		color.Red.Printf("Config error: %v\n", err)
		os.Exit(2)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// Read-only with BypassLockGuard so the CLI works while the relay holds
	// the database lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		color.Red.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	conversations := repositories.NewConversationRepository(db, logger)
	messages := repositories.NewMessageRepository(db, logger, nil)

	switch os.Args[1] {
	case "conversations":
		err = listConversations(conversations)
	case "messages":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		err = dumpMessages(messages, os.Args[2])
	case "search":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		err = searchMessages(config, strings.Join(os.Args[2:], " "))
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		color.Red.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  opsctl conversations              List all conversations
  opsctl messages <conversation>    Dump one conversation thread
  opsctl search <terms...>          Full-text search over messages`)
}

func listConversations(repo repositories.IConversationRepository) error {
	conversations, err := repo.List()
	if err != nil {
		return err
	}
	color.Green.Printf("%d conversation(s)\n", len(conversations))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Visitor", "Last message", "Last activity"})
	for _, conv := range conversations {
		table.Append([]string{
			conv.ID,
			conv.OtherParticipant(domain.OperatorID),
			truncate(conv.LastMessage, 48),
			formatTime(conv.LastMessageAt),
		})
	}
	table.Render()
	return nil
}

func dumpMessages(repo repositories.IMessageRepository, conversationID string) error {
	messages, err := repo.GetMessages(conversationID)
	if err != nil {
		return err
	}
	color.Green.Printf("%d message(s) in %s\n", len(messages), conversationID)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Sender", "Lang", "Read", "Content"})
	for _, msg := range messages {
		table.Append([]string{
			formatTime(msg.CreatedAt),
			msg.SenderID,
			msg.Lang,
			fmt.Sprintf("%v", msg.Read),
			truncate(msg.Content, 64),
		})
	}
	table.Render()
	return nil
}

func searchMessages(config Config, terms string) error {
	logger := logs.GetLoggerFromString(config.LogLevel)
	index, err := search.Open(config.BlugeFilepath, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	hits, err := index.Search(context.Background(), terms, "", 25)
	if err != nil {
		return err
	}
	color.Green.Printf("%d hit(s) for %q\n", len(hits), terms)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Conversation", "Sender", "Content"})
	for _, hit := range hits {
		table.Append([]string{
			formatTime(hit.At),
			hit.ConversationID,
			hit.SenderID,
			truncate(hit.Content, 64),
		})
	}
	table.Render()
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
