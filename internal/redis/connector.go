package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/connpane/internal/logger"
)

// ConnectOptions configures the client and the startup retry policy.
type ConnectOptions struct {
	Addr         string // host:port
	User         string
	Password     string
	RedisDB      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ConnectTimeout time.Duration // budget for every attempt together
	RetryInterval  time.Duration // first backoff, doubled after each failure
	MaxWait        time.Duration // backoff cap
	PingTimeout    time.Duration // per attempt
	WarnThreshold  int           // failed attempts logged as warnings before escalating to errors
}

func (o ConnectOptions) validate() error {
	var errs []error
	if o.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConnectTimeout must be > 0, got %v", o.ConnectTimeout))
	}
	if o.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("RetryInterval must be > 0, got %v", o.RetryInterval))
	}
	if o.MaxWait <= 0 {
		errs = append(errs, fmt.Errorf("MaxWait must be > 0, got %v", o.MaxWait))
	}
	if o.PingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PingTimeout must be > 0, got %v", o.PingTimeout))
	}
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold))
	}
	return errors.Join(errs...)
}

// Pinger is the part of a Redis client the retry loop needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Connect creates a Redis client and pings it with exponential backoff until
// ConnectTimeout is reached or ctx is cancelled. The client is closed when
// no attempt succeeds.
func Connect(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	d := &dialer{client: client, opts: opts, log: log.With(logger.Component("redis"))}
	if err := d.run(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// backoff doubles the wait after every step, up to max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) step() time.Duration {
	cur := b.next
	b.next = min(b.next*2, b.max)
	return cur
}

type dialer struct {
	client Pinger
	opts   ConnectOptions
	log    logger.Logger
}

func (d *dialer) run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, d.opts.ConnectTimeout)
	defer cancel()

	d.log.Info("connecting to redis",
		logger.String("addr", d.opts.Addr),
		logger.Duration("timeout", d.opts.ConnectTimeout))

	start := time.Now()
	wait := &backoff{next: d.opts.RetryInterval, max: d.opts.MaxWait}

	for attempt := 1; ; attempt++ {
		err := d.ping(ctx)
		if err == nil {
			d.connected(attempt, time.Since(start))
			return nil
		}

		delay := wait.step()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.log.Error("redis unavailable, giving up",
				logger.String("addr", d.opts.Addr),
				logger.Int("attempts", attempt),
				logger.Duration("timeout", d.opts.ConnectTimeout),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts (timeout: %v): %w",
				d.opts.Addr, attempt, d.opts.ConnectTimeout, err)
		case <-timer.C:
			d.retrying(attempt, remaining(ctx), delay, err)
		}
	}
}

func (d *dialer) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.PingTimeout)
	defer cancel()
	return d.client.Ping(ctx).Err()
}

func (d *dialer) connected(attempts int, elapsed time.Duration) {
	if attempts == 1 {
		d.log.Info("connected to redis", logger.String("addr", d.opts.Addr))
		return
	}
	d.log.Warn("connected to redis after retry",
		logger.String("addr", d.opts.Addr),
		logger.Int("attempts", attempts),
		logger.Duration("elapsed", elapsed))
}

// retrying logs a failed attempt. Early failures are warnings; past the
// threshold, or close to the deadline, they become errors.
func (d *dialer) retrying(attempt int, left, delay time.Duration, err error) {
	fields := []logger.Field{
		logger.String("addr", d.opts.Addr),
		logger.Int("attempt", attempt),
		logger.Duration("remaining", left),
		logger.Duration("next_retry_in", delay),
		logger.Error(err),
	}
	if attempt <= d.opts.WarnThreshold && left >= 10*time.Second {
		d.log.Warn("redis connection failed, retrying", fields...)
		return
	}
	d.log.Error("redis still unavailable, retrying", fields...)
}

func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
