package task

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Implement operation retrying
type Retry struct {
	ctx context.Context

	// Start time of the current attempt
	startTime time.Time

	maxElapsedTime     time.Duration
	maxInterval        time.Duration
	acceptableDuration time.Duration
	onError            func(error, bool) error
}

func NewRetry() *Retry {
	return &Retry{ctx: context.Background()}
}

func (self *Retry) WithMaxElapsedTime(maxElapsedTime time.Duration) *Retry {
	self.maxElapsedTime = maxElapsedTime
	return self
}

func (self *Retry) WithMaxInterval(maxInterval time.Duration) *Retry {
	self.maxInterval = maxInterval
	return self
}

// Errors returned from attempts shorter than this are reported as acceptable
func (self *Retry) WithAcceptableDuration(v time.Duration) *Retry {
	self.acceptableDuration = v
	return self
}

func (self *Retry) WithContext(ctx context.Context) *Retry {
	self.ctx = ctx
	return self
}

// Callback can return backoff.Permanent to stop retrying
func (self *Retry) WithOnError(v func(error, bool) error) *Retry {
	self.onError = v
	return self
}

func (self *Retry) Run(f func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = self.maxElapsedTime
	if self.maxInterval > 0 {
		b.MaxInterval = self.maxInterval
	}

	op := func() (err error) {
		self.startTime = time.Now()
		err = f()
		if err == nil || self.onError == nil {
			return
		}

		isDurationAcceptable := self.acceptableDuration == 0 || time.Since(self.startTime) < self.acceptableDuration
		return self.onError(err, isDurationAcceptable)
	}

	return backoff.Retry(op, backoff.WithContext(b, self.ctx))
}
