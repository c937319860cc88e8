package migration

import (
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

type GooseAdapter struct {
	logger zerolog.Logger
}

var _ goose.Logger = (*GooseAdapter)(nil)

func NewGooseAdapter(logger zerolog.Logger) *GooseAdapter {
	return &GooseAdapter{
		logger: logger.With().Str("component", "goose").Logger(),
	}
}

// Printf logs goose progress at info level.
func (a *GooseAdapter) Printf(format string, v ...interface{}) {
	a.logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs and exits, matching goose's expectations of a Fatalf.
func (a *GooseAdapter) Fatalf(format string, v ...interface{}) {
	a.logger.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
