package main

import (
	"github.com/rs/zerolog/log"
)

func main() {
	if err := Execute(); err != nil {
		log.Fatal().Err(err).Msg("seshd failed")
	}
}
