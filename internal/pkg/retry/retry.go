package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts = 2
	defaultDelay    = 500 * time.Millisecond
	defaultMaxDelay = 5 * time.Second
)

// RetryConfig controls how often a single provider is retried and how long to wait in between.
type RetryConfig struct {
	Attempts uint          `env:"ATTEMPTS" envDefault:"2"`
	Delay    time.Duration `env:"DELAY" envDefault:"500ms"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"5s"`
}

// ToRetryOptions builds exponential backoff options bound to ctx.
// retryIf decides which errors deserve another attempt.
func (rc *RetryConfig) ToRetryOptions(ctx context.Context, retryIf func(error) bool) []retry.Option {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(rc.Attempts),
		retry.Delay(rc.Delay),
		retry.MaxDelay(rc.MaxDelay),
		retry.LastErrorOnly(true),
	}
	// RandomDelay panics on a zero jitter window
	if jitter := rc.Delay / 2; jitter > 0 {
		opts = append(opts,
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
			retry.MaxJitter(jitter),
		)
	} else {
		opts = append(opts, retry.DelayType(retry.BackOffDelay))
	}
	if retryIf != nil {
		opts = append(opts, retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) && retryIf(err)
		}))
	}
	return opts
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}
