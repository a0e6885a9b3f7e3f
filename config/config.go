package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/outofforest/tokenbridge/types"
)

// Config is the configuration of the bridge node.
type Config struct {
	JournalDir         string              `env:"TOKENBRIDGE_JOURNAL_DIR,required"`
	MetricsAddress     string              `env:"TOKENBRIDGE_METRICS_ADDRESS"     envDefault:"localhost:9090"`
	ProgramID          types.Address       `env:"TOKENBRIDGE_PROGRAM_ID,required"`
	TransportProgramID types.Address       `env:"TOKENBRIDGE_TRANSPORT_PROGRAM_ID,required"`
	Owner              types.Address       `env:"TOKENBRIDGE_OWNER,required"`
	TokenMint          types.Address       `env:"TOKENBRIDGE_TOKEN_MINT,required"`
	LocalNetworkID     types.NetworkID     `env:"TOKENBRIDGE_LOCAL_NETWORK_ID"    envDefault:"1"`
	Surcharge          uint64              `env:"TOKENBRIDGE_SURCHARGE"           envDefault:"10000"`
	SurchargeMode      types.SurchargeMode `env:"TOKENBRIDGE_SURCHARGE_MODE"      envDefault:"both"`
}

// FromEnv loads configuration from environment variables.
func FromEnv() (Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing environment failed")
	}
	for name, address := range map[string]types.Address{
		"program ID":           cfg.ProgramID,
		"transport program ID": cfg.TransportProgramID,
		"owner":                cfg.Owner,
		"token mint":           cfg.TokenMint,
	} {
		if address.IsZero() {
			return Config{}, errors.Errorf("%s must not be zero", name)
		}
	}
	if cfg.LocalNetworkID == 0 {
		return Config{}, errors.New("local network ID must not be zero")
	}
	return cfg, nil
}
