// Package negotiate turns a free-text reply into today's stretch time.
package negotiate

import (
	"strings"
	"time"

	"stretchbot/internal/daytime"
	logx "stretchbot/pkg/logx"
)

// Layouts are tried in order; the first one that parses wins.
var Layouts = []string{
	"03:04 PM",
	"3:04 PM",
	"03:04",
	"15:04",
	"15:04:05", // also accepts a fractional second
	"15:04:05Z07:00",
	"15:04Z07:00",
}

// DefaultTime is used when nothing matches.
var DefaultTime = daytime.New(11, 30, 0)

// Parsed is the outcome of Parse.
type Parsed struct {
	Time daytime.TimeOfDay
	// Defaulted is set when the input matched no layout and Time is the fallback.
	Defaulted bool
}

type Negotiator struct {
	log      logx.Logger
	fallback daytime.TimeOfDay
}

// New returns a negotiator falling back to fallback; a negative or Off
// fallback means DefaultTime.
func New(fallback daytime.TimeOfDay, log logx.Logger) *Negotiator {
	if fallback.IsOff() {
		fallback = DefaultTime
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Negotiator{log: log, fallback: fallback}
}

// Parse never fails: "off" (any case) yields daytime.Off, a recognised time
// yields that time, anything else yields the fallback and a warning.
func (n *Negotiator) Parse(text string) Parsed {
	in := strings.ToUpper(strings.TrimSpace(text))
	if in == "OFF" {
		return Parsed{Time: daytime.Off}
	}
	for _, layout := range Layouts {
		t, err := time.Parse(layout, in)
		if err != nil {
			continue
		}
		return Parsed{Time: daytime.FromTime(t)}
	}
	n.log.Warn("unable to parse time; using default",
		logx.String("input", text),
		logx.String("default", n.fallback.String()),
	)
	return Parsed{Time: n.fallback, Defaulted: true}
}
