package compiler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/schema"
)

const (
	// NetworkComponent is the document key of the shared network unit.
	NetworkComponent = "network"
	// NetworkPriority runs the network unit ahead of every radio unit.
	NetworkPriority = 201.0

	FlagNetwork     = "USE_NETWORK"
	FlagNetworkIPv6 = "USE_NETWORK_IPV6"
)

const networkSource = `
#Network: {
	enable_ipv6: *false | bool
}
`

// NetworkConfig is the validated network subtree.
type NetworkConfig struct {
	EnableIPv6 bool `json:"enable_ipv6"`
}

var networkSpec = schema.MustCompile[NetworkConfig]("network", networkSource, "#Network")

// NetworkUnit compiles the network component that radio units load
// automatically.
type NetworkUnit struct {
	logger zerolog.Logger
}

// NewNetworkUnit returns the network unit.
func NewNetworkUnit(logger zerolog.Logger) *NetworkUnit {
	return &NetworkUnit{logger: logger.With().Str("component", "compiler").Str("unit", NetworkComponent).Logger()}
}

func (u *NetworkUnit) Name() string      { return NetworkComponent }
func (u *NetworkUnit) Priority() float64 { return NetworkPriority }

func (u *NetworkUnit) Compile(ctx context.Context, raw config.Node) ([]action.Action, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	cfg, err := schema.Validate(raw, networkSpec)
	if err != nil {
		return nil, Wrap(NetworkComponent, err)
	}
	b := &action.Builder{}
	b.Define(FlagNetwork)
	if cfg.EnableIPv6 {
		b.Define(FlagNetworkIPv6)
	}
	u.logger.Debug().Bool("ipv6", cfg.EnableIPv6).Msg("network component compiled")
	return b.Actions(), nil
}
