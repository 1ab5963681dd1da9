package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/sensorable/platelbl/internal/config"
	"github.com/sensorable/platelbl/internal/server"
	"github.com/sensorable/platelbl/vision"
)

func main() {
	configPath := flag.String("config", "", "JSON config file (environment variables override it)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	vocab, err := cfg.Vocabulary()
	if err != nil {
		log.Fatal().Err(err).Msg("create vocabulary")
	}

	locator, err := vision.NewWithParams(cfg.Locator)
	if err != nil {
		log.Fatal().Err(err).Msg("create locator")
	}

	e := server.New(vocab, locator, cfg.Server.MaxUploadSize).Router()
	log.Info().Str("addr", cfg.Server.Addr).Strs("classes", vocab.Names()).Msg("listening")
	if err = e.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("run server")
	}
}
