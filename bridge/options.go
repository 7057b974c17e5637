package bridge

import (
	"time"

	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultEscrowAccount is the purse holding bridged funds unless configured otherwise.
const DefaultEscrowAccount custody.AccountRef = "bridge-escrow-purse"

// DefaultProofTimeout bounds a single proof gate evaluation.
const DefaultProofTimeout = 2 * time.Minute

// Option configures a Bridge.
type Option func(*Bridge)

func WithLogger(log *logrus.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// WithRegisterer registers the bridge metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(b *Bridge) {
		b.registerer = reg
	}
}

// WithEscrowAccount sets the purse that holds deposited funds.
func WithEscrowAccount(ref custody.AccountRef) Option {
	return func(b *Bridge) {
		if ref != "" {
			b.escrow = ref
		}
	}
}

// WithProofTimeout bounds how long the proof gate may take for one call.
// The verifier's context is cancelled when it expires. Zero disables the bound.
func WithProofTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d >= 0 {
			b.proofTimeout = d
		}
	}
}
