package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solhook/service/db"
	"github.com/brojonat/solhook/service/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams record events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Subscribe to record events",
		Description: `Subscribe to record events published to NATS JetStream after each
successful insert. Events are published to the subject records.{kind}.

Example:
  solhook events subscribe --kind sol_transfer --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Only show one record kind (sol_transfer, nft_sale, token_transfer)",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "solhook-cli",
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			subject := events.StreamSubjects
			if k := c.String("kind"); k != "" {
				kind, ok := db.ParseKind(k)
				if !ok {
					return fmt.Errorf("unknown kind %q", k)
				}
				subject = events.Subject(kind)
			}

			return streamRecords(c, subject)
		},
	}
}

// streamRecords connects to NATS and prints record events until interrupted.
func streamRecords(c *cli.Context, subject string) error {
	natsURL := c.String("nats-url")
	jsonOutput := c.Bool("json")
	filter := c.String("jq")

	// Connect to NATS
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput && filter == "" {
		fmt.Fprintf(c.App.ErrWriter, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(c.App.ErrWriter, "   NATS: %s\n", natsURL)
		fmt.Fprintf(c.App.ErrWriter, "\nWaiting for records... (Ctrl-C to exit)\n\n")
	}

	// Create consumer config
	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if c.Bool("durable") {
		consumerConfig.Durable = c.String("consumer-name")
		consumerConfig.Name = c.String("consumer-name")
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), events.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event events.RecordEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "Error parsing event: %v\n", err)
				msg.Ack()
				continue
			}
			count++

			switch {
			case filter != "":
				if err := outputJQ(c.App.Writer, event, filter); err != nil {
					fmt.Fprintf(c.App.ErrWriter, "%v\n", err)
				}
			case jsonOutput:
				data, _ := json.Marshal(event)
				fmt.Fprintln(c.App.Writer, string(data))
			default:
				printRecordEvent(c, count, &event)
			}

			msg.Ack()

		case <-sigChan:
			if !jsonOutput && filter == "" {
				fmt.Fprintf(c.App.ErrWriter, "\n\n✅ Received %d records\n", count)
			}
			return nil
		}
	}
}

func printRecordEvent(c *cli.Context, n int, event *events.RecordEvent) {
	w := c.App.Writer
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Record #%d (%s)\n", n, event.Kind)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	fmt.Fprintf(w, "Event ID:     %s\n", event.ID)
	fmt.Fprintf(w, "Record:       %s\n", string(event.Record))
	fmt.Fprintf(w, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}
