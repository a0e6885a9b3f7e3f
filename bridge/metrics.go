package bridge

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/outofforest/tokenbridge/types"
)

const (
	namespace = "tokenbridge"

	legOutbound = "outbound"
	legInbound  = "inbound"
)

var reasons = []struct {
	err    error
	reason string
}{
	{types.ErrOwnerOnly, "owner_only"},
	{types.ErrInvalidForeignEmitter, "invalid_foreign_emitter"},
	{types.ErrInvalidMintDecimals, "invalid_mint_decimals"},
	{types.ErrInvalidMessage, "invalid_message"},
	{types.ErrDuplicateMessage, "duplicate_message"},
	{types.ErrPublicMintDisabled, "public_mint_disabled"},
	{types.ErrAmountTooSmall, "amount_too_small"},
	{types.ErrInvalidAmount, "invalid_amount"},
	{types.ErrInvalidTransportConfig, "invalid_transport_config"},
	{types.ErrInvalidRecipient, "invalid_recipient"},
	{types.ErrAlreadyBootstrapped, "already_bootstrapped"},
	{types.ErrNotBootstrapped, "not_bootstrapped"},
}

type metrics struct {
	minted    prometheus.Counter
	burned    prometheus.Counter
	published prometheus.Counter
	surcharge *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		minted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "minted_total",
			Help:      "Amount of tokens minted from inbound messages.",
		}),
		burned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "burned_total",
			Help:      "Amount of tokens burned by outbound transfers, surcharge included.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Number of messages published to the transport.",
		}),
		surcharge: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surcharge_total",
			Help:      "Amount of tokens deducted as surcharge.",
		}, []string{"leg"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Number of rejected operations.",
		}, []string{"operation", "reason"}),
	}

	if registerer == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.minted, m.burned, m.published, m.surcharge, m.rejected} {
		if err := registerer.Register(c); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return m, nil
}

func reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}
