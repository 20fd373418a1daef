package bridge

import (
	"context"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Run parses args, configures logging and serves the bridge until a
// termination signal arrives.
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(options.LogLevel)
	if err != nil {
		return err
	}
	log.Logger = log.Level(level)

	ctx := context.Background()
	service, err := New(ctx, options)
	if err != nil {
		return err
	}
	return service.ListenAndServe(ctx)
}
