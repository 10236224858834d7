// Command registryctl is an operator CLI for the credential registry: it calls
// the HTTP API and tails the credential event topic.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	contract "vcregistry/contracts/credential"
	"vcregistry/internal/credential/client"
	"vcregistry/internal/platform/config"
	"vcregistry/internal/platform/kafka/consumer"
	"vcregistry/internal/platform/logger"
)

var flagServerAddr = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	Usage:   "Registry API base URL",
	EnvVars: []string{"VCREG_SERVER"},
}

var flagToken = &cli.StringFlag{
	Name:    "token",
	Usage:   "Caller bearer token, required for issue and revoke (see tokengen)",
	EnvVars: []string{"VCREG_TOKEN"},
}

var flagSubject = &cli.StringFlag{
	Name:     "subject",
	Required: true,
	Usage:    "Subject DID",
}

var flagCID = &cli.StringFlag{
	Name:     "cid",
	Required: true,
	Usage:    "Content identifier, more than 10 bytes",
}

var flagExpiresAt = &cli.Int64Flag{
	Name:  "expires-at",
	Usage: "Expiry as unix milliseconds. Omit for a credential that never expires",
}

var flagBrokers = &cli.StringFlag{
	Name:    "brokers",
	Usage:   "Comma separated Kafka brokers",
	EnvVars: []string{"KAFKA_BROKERS"},
}

var flagTopic = &cli.StringFlag{
	Name:    "topic",
	Value:   config.DefaultEventsTopic,
	EnvVars: []string{"KAFKA_TOPIC"},
}

var flagGroup = &cli.StringFlag{
	Name:  "group",
	Value: "registryctl-watch",
	Usage: "Kafka consumer group",
}

var flagFromStart = &cli.BoolFlag{
	Name:  "from-start",
	Usage: "Read the topic from the beginning when the group has no committed offset",
}

var flagLogLevel = &cli.StringFlag{
	Name:  "log-level",
	Value: "warn",
}

func main() {
	app := &cli.App{
		Name:  "registryctl",
		Usage: "issue, revoke and inspect verifiable credentials",
		Flags: []cli.Flag{
			flagServerAddr,
			flagToken,
			flagLogLevel,
		},
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "issue a credential as the token's caller",
				Flags: []cli.Flag{flagSubject, flagCID, flagExpiresAt},
				Action: func(cCtx *cli.Context) error {
					var expires *int64
					if cCtx.IsSet(flagExpiresAt.Name) {
						v := cCtx.Int64(flagExpiresAt.Name)
						expires = &v
					}
					view, err := newClient(cCtx).Issue(cCtx.Context, cCtx.String(flagSubject.Name), cCtx.String(flagCID.Name), expires)
					if err != nil {
						return err
					}
					return printJSON(view)
				},
			},
			{
				Name:  "revoke",
				Usage: "revoke a credential; only its issuer may",
				Flags: []cli.Flag{flagSubject, flagCID},
				Action: func(cCtx *cli.Context) error {
					view, err := newClient(cCtx).Revoke(cCtx.Context, cCtx.String(flagSubject.Name), cCtx.String(flagCID.Name))
					if err != nil {
						return err
					}
					return printJSON(view)
				},
			},
			{
				Name:  "valid",
				Usage: "check whether a credential is currently valid; exits 2 when it is not",
				Flags: []cli.Flag{flagSubject, flagCID},
				Action: func(cCtx *cli.Context) error {
					valid, err := newClient(cCtx).IsValid(cCtx.Context, cCtx.String(flagSubject.Name), cCtx.String(flagCID.Name))
					if err != nil {
						return err
					}
					if err := printJSON(map[string]bool{"valid": valid}); err != nil {
						return err
					}
					if !valid {
						return cli.Exit("", 2)
					}
					return nil
				},
			},
			{
				Name:  "get",
				Usage: "show the stored credential",
				Flags: []cli.Flag{flagSubject, flagCID},
				Action: func(cCtx *cli.Context) error {
					view, err := newClient(cCtx).GetCredential(cCtx.Context, cCtx.String(flagSubject.Name), cCtx.String(flagCID.Name))
					if err != nil {
						return err
					}
					if view == nil {
						return cli.Exit("credential not found", 1)
					}
					return printJSON(view)
				},
			},
			{
				Name:  "watch",
				Usage: "print credential lifecycle events as they are published",
				Flags: []cli.Flag{flagBrokers, flagTopic, flagGroup, flagFromStart},
				Action: watch,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "registryctl:", err)
		os.Exit(1)
	}
}

func newClient(cCtx *cli.Context) *client.Client {
	return client.New(cCtx.String(flagServerAddr.Name), client.WithToken(cCtx.String(flagToken.Name)))
}

func watch(cCtx *cli.Context) error {
	log := logger.New(cCtx.String(flagLogLevel.Name))

	c, err := consumer.New(consumer.Config{
		Brokers:   cCtx.String(flagBrokers.Name),
		GroupID:   cCtx.String(flagGroup.Name),
		Topics:    []string{cCtx.String(flagTopic.Name)},
		FromStart: cCtx.Bool(flagFromStart.Name),
	}, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		return printEvent(ctx, log, msg)
	}), log)
	if err != nil {
		return err
	}

	log.Info("watching credential events", "topic", cCtx.String(flagTopic.Name))
	return c.Run(cCtx.Context)
}

// printEvent writes one event per line. Records that do not decode as
// credential events are skipped and still committed.
func printEvent(ctx context.Context, log *slog.Logger, msg *consumer.Message) error {
	var evt contract.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		log.WarnContext(ctx, "skipping undecodable record", "offset", msg.Offset, "error", err)
		return nil
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	fmt.Println(string(line))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
