package round

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// LogPlayback is a headless Playback that records what would be played.
type LogPlayback struct {
	log *zerolog.Logger
}

// NewLogPlayback creates a playback that logs to logger.
func NewLogPlayback(logger *zerolog.Logger) *LogPlayback {
	return &LogPlayback{log: logger}
}

func (p *LogPlayback) PlayTone(hz float64) (func(), error) {
	p.log.Info().Float64("hz", hz).Msg("guide tone started")
	return func() { p.log.Info().Float64("hz", hz).Msg("guide tone stopped") }, nil
}

// PlayFile checks that path is a readable regular file before "playing" it.
func (p *LogPlayback) PlayFile(path string) (func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}

	p.log.Info().Str("file", path).Int64("bytes", info.Size()).Msg("guide file started")
	return func() { p.log.Info().Str("file", path).Msg("guide file stopped") }, nil
}
