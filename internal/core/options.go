package core

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Defaults applied when a client omits a field. Zero values count as omitted.
const (
	DefaultHeadcount    = 30
	DefaultHostName     = "Host"
	DefaultPlayerName   = "Player"
	DefaultRoundLabel   = "Round"
	DefaultRoundSeconds = 10.0
	DefaultTargetHz     = 220.0

	MaxHeadcount    = 10000
	MaxRoundSeconds = 600.0
	MinTargetHz     = 60.0
	MaxTargetHz     = 1000.0

	maxNameRunes = 64
)

// RoundOptions configures a single round.
type RoundOptions struct {
	Seconds  float64
	UseOsc   bool
	TargetHz float64
}

// Duration returns the measurement window length.
func (o RoundOptions) Duration() time.Duration {
	return time.Duration(o.Seconds * float64(time.Second))
}

// WithDefaults fills omitted fields without validating the rest.
func (o RoundOptions) WithDefaults() RoundOptions {
	if o.Seconds == 0 {
		o.Seconds = DefaultRoundSeconds
	}
	if o.TargetHz == 0 {
		o.TargetHz = DefaultTargetHz
	}
	return o
}

// Validate fills defaults and rejects values outside the supported ranges.
func (o RoundOptions) Validate() (RoundOptions, error) {
	o = o.WithDefaults()
	if math.IsNaN(o.Seconds) || o.Seconds < 0 || o.Seconds > MaxRoundSeconds {
		return o, badRequest("round seconds must be in (0, 600]")
	}
	if math.IsNaN(o.TargetHz) || o.TargetHz < MinTargetHz || o.TargetHz > MaxTargetHz {
		return o, badRequest("targetHz must be in [60, 1000]")
	}
	return o, nil
}

// HeadcountOrDefault returns the declared group size, substituting the default for zero.
func HeadcountOrDefault(n int) int {
	if n == 0 {
		return DefaultHeadcount
	}
	return n
}

func validateHeadcount(n int) (int, error) {
	n = HeadcountOrDefault(n)
	if n < 1 || n > MaxHeadcount {
		return n, badRequest("headcount must be in [1, 10000]")
	}
	return n, nil
}

func cleanName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		runes := []rune(name)
		name = string(runes[:maxNameRunes])
	}
	return name
}

func validateDelay(delayMs *int64, def, max time.Duration) (time.Duration, error) {
	if delayMs == nil {
		return def, nil
	}
	if *delayMs < 0 || *delayMs > max.Milliseconds() {
		return 0, badRequest("delayMs out of range")
	}
	return time.Duration(*delayMs) * time.Millisecond, nil
}
