// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"fmt"
	"net/url"

	"github.com/ManuGH/vodagg/internal/config"
)

// Mode selects how a target URL is appended to a strategy prefix.
type Mode int

const (
	// ModeRaw appends the target verbatim.
	ModeRaw Mode = iota
	// ModeQuery appends the URL-encoded target.
	ModeQuery
)

func (m Mode) String() string {
	if m == ModeQuery {
		return config.ModeQuery
	}
	return config.ModeRaw
}

// Strategy is one transport path in the fallback chain. An empty Prefix is
// the direct (privileged pass-through) path.
type Strategy struct {
	Name   string
	Prefix string
	Mode   Mode
}

// Direct returns the pass-through strategy.
func Direct() Strategy { return Strategy{Name: "direct", Mode: ModeRaw} }

// Wrap builds the URL actually requested for target.
func (s Strategy) Wrap(target string) string {
	if s.Mode == ModeQuery {
		return s.Prefix + url.QueryEscape(target)
	}
	return s.Prefix + target
}

// IsDirect reports whether the strategy talks to the target without a relay.
func (s Strategy) IsDirect() bool { return s.Prefix == "" }

// StrategiesFromConfig converts configured relays into strategies, keeping order.
func StrategiesFromConfig(relays []config.RelayConfig) ([]Strategy, error) {
	out := make([]Strategy, 0, len(relays))
	for _, r := range relays {
		var mode Mode
		switch r.Mode {
		case config.ModeRaw, "":
			mode = ModeRaw
		case config.ModeQuery:
			mode = ModeQuery
		default:
			return nil, fmt.Errorf("relay %q: unknown mode %q", r.Name, r.Mode)
		}
		out = append(out, Strategy{Name: r.Name, Prefix: r.Prefix, Mode: mode})
	}
	return out, nil
}
