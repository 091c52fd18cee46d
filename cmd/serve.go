package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bitbucket.org/novatechnologies/barfeed/api/http"
	"bitbucket.org/novatechnologies/barfeed/candle"
	"bitbucket.org/novatechnologies/barfeed/client/birdeye"
	"bitbucket.org/novatechnologies/barfeed/datafeed"
	"bitbucket.org/novatechnologies/barfeed/infra"
	"bitbucket.org/novatechnologies/barfeed/infra/broker"
	"bitbucket.org/novatechnologies/barfeed/infra/centrifuge"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
	"bitbucket.org/novatechnologies/barfeed/infra/mongo"
	"bitbucket.org/novatechnologies/barfeed/internal/repository"
	"bitbucket.org/novatechnologies/barfeed/internal/service"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP datafeed with live aggregation",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := infra.SetConfig(configPathFlag)
		if err != nil {
			return err
		}

		return serve(conf)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newBirdeyeClient(conf infra.Config) (birdeye.Client, error) {
	if err := conf.BirdeyeConfig.Validate(); err != nil {
		return nil, err
	}

	return birdeye.New(
		birdeye.Config{
			ServerURL:         conf.BirdeyeConfig.BaseURL,
			APIKey:            conf.BirdeyeConfig.APIKey,
			Chain:             conf.BirdeyeConfig.Chain,
			Timeout:           conf.BirdeyeConfig.Timeout,
			RequestsPerSecond: conf.BirdeyeConfig.RequestsPerSecond,
		},
		birdeye.NewErrorProcessor(map[int]string{}),
	)
}

func serve(conf infra.Config) error {
	ctx, stop := signal.NotifyContext(infra.GetContext(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx)

	loc, err := conf.FeedConfig.Location()
	if err != nil {
		return err
	}

	client, err := newBirdeyeClient(conf)
	if err != nil {
		return errors.Wrap(err, "can't birdeye.New")
	}
	stream := birdeye.NewPriceStream(birdeye.StreamConfig{
		URL:      conf.BirdeyeConfig.WSURL,
		APIKey:   conf.BirdeyeConfig.APIKey,
		Currency: conf.BirdeyeConfig.Currency,
	})

	eventsBroker := broker.NewInMemory()
	cache := candle.NewLastBars()
	history := candle.NewHistory(client, cache)
	aggregator := candle.NewAggregator(stream, cache, eventsBroker, loc)
	defer aggregator.Close()

	group, ctx := errgroup.WithContext(ctx)

	if conf.MongoDbConfig.Enabled() {
		mongoClient, err := mongo.NewMongoClient(ctx, conf.MongoDbConfig)
		if err != nil {
			return err
		}
		defer func() {
			_ = mongoClient.Disconnect(context.Background())
		}()
		collection, err := mongo.GetBarsCollection(ctx, mongoClient, conf.MongoDbConfig)
		if err != nil {
			return err
		}

		bars := repository.NewBar(collection)
		aggregator.WithSeedStore(bars)

		archive := service.NewArchive(bars)
		archive.SubscribeForClosedBars(eventsBroker)
		group.Go(func() error {
			return archive.Run(ctx)
		})
	}

	if conf.CentrifugeConfig.Enabled() {
		broadcaster := centrifuge.NewBroadcaster(
			centrifuge.New(conf.CentrifugeConfig),
			eventsBroker,
			conf.CentrifugeConfig.BatchSize,
			conf.CentrifugeConfig.BatchWait,
		)
		broadcaster.SubscribeForBars()
		group.Go(func() error {
			return broadcaster.Run(ctx)
		})
	}

	feed := datafeed.New(history, aggregator, datafeed.Config{
		Symbols:  conf.FeedConfig.Symbols,
		Exchange: conf.FeedConfig.Exchange,
		Timezone: conf.FeedConfig.Timezone,
	})

	server := http.NewServer(ctx, feed, conf)
	server.Start(ctx)

	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		server.Stop(shutdownCtx)

		return nil
	})

	return group.Wait()
}
