// Package sessions stores dialog sessions. Sessions idle for longer than the
// configured TTL are treated as absent, so a conversation that went quiet
// starts over in the READY state.
package sessions

import (
	"time"

	"github.com/koscakluka/ema-workflow/core/dialog"
)

const DefaultIdleTTL = 30 * time.Minute

type options struct {
	idleTTL time.Duration
	now     func() time.Time
}

type Option func(*options)

// WithIdleTTL sets how long an untouched session is kept. Zero keeps
// sessions forever.
func WithIdleTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.idleTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{idleTTL: DefaultIdleTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) expired(session *dialog.Session, now time.Time) bool {
	return o.idleTTL > 0 && !session.UpdatedAt.IsZero() && now.Sub(session.UpdatedAt) > o.idleTTL
}
