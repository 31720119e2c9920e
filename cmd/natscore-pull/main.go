// Command natscore-pull is a runnable example of the pull-consumer engine:
// it connects, ensures a stream and durable consumer exist, then drains
// messages via Consume until its context is canceled. Mirrors the
// config/flag/flow of the teacher's cmd/main.go, retargeted at this
// library's public surface instead of starting a websocket server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	nats "github.com/adred-codev/natscore"
	"github.com/adred-codev/natscore/jetstream"
)

func main() {
	var (
		url      string
		stream   string
		subject  string
		consumer string
	)
	flag.StringVar(&url, "url", "nats://localhost:4222", "server URL")
	flag.StringVar(&stream, "stream", "ORDERS", "stream name")
	flag.StringVar(&subject, "subject", "orders.>", "stream subject filter")
	flag.StringVar(&consumer, "consumer", "natscore-pull", "durable consumer name")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := nats.DefaultOptions()
	opts.URL = url
	opts.Logger = log

	conn, err := nats.ConnectWithOptions(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer conn.Close()

	js := jetstream.New(conn, jetstream.WithLogger(log), jetstream.WithPullRateLimit(20, 5))

	if _, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
		Storage:  jetstream.StorageFile,
	}); err != nil {
		log.Warn().Err(err).Msg("create stream (already exists?)")
	}

	if _, err := js.CreateConsumer(ctx, stream, jetstream.ConsumerConfig{
		DurableName: consumer,
		AckPolicy:   jetstream.AckExplicit,
	}); err != nil {
		log.Warn().Err(err).Msg("create consumer (already exists?)")
	}

	pc := js.PullSubscribe(stream, consumer)
	sub, err := pc.Consume(ctx, jetstream.ConsumeConfig{MaxMsgs: 100})
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}
	defer sub.Stop()

	log.Info().Str("stream", stream).Str("consumer", consumer).Msg("pulling")

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			log.Debug().Str("subject", msg.Subject).Int("bytes", len(msg.Data)).Msg("delivered")
		case n, ok := <-sub.Notifications():
			if !ok {
				continue
			}
			if n.Kind == jetstream.NotifyTerminated {
				log.Error().Err(n.Err).Msg("consumer terminated")
				return
			}
		case <-ctx.Done():
			return
		case <-time.After(time.Minute):
			log.Warn().Msg("no activity for a minute")
		}
	}
}
