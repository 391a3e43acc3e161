package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	prover "github.com/kysee/zk-folding/provers"
	"github.com/kysee/zk-folding/provers/types"
)

func main() {
	log := zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	config := types.NewConfig(os.Args[1:]...)
	fetcher := prover.NewFallbackFetcher(config, log)
	client := prover.NewProofClient(config, log)

	aggregator, err := prover.NewAggregator(config, fetcher, client, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create aggregator")
	}

	if err := aggregator.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("aggregation loop stopped")
	}
}
