package retry

import (
	"context"
	"errors"
	"net"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

// Class is how a failed platform call is treated.
type Class int

const (
	// ClassPermanent stops immediately.
	ClassPermanent Class = iota
	// ClassTransient is retried after backoff.
	ClassTransient
	// ClassStale means a media reference the call relied on is no longer
	// recognized; implicated cache entries are dropped and the call retried.
	ClassStale
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassStale:
		return "stale"
	default:
		return "permanent"
	}
}

// Classifier maps a call error onto a Class.
type Classifier interface {
	Classify(err error) Class
}

type ClassifierFunc func(err error) Class

func (f ClassifierFunc) Classify(err error) Class { return f(err) }

// NetworkClassifier retries timeouts and network failures and nothing else.
var NetworkClassifier = ClassifierFunc(func(err error) Class {
	if IsNetworkFailure(err) {
		return ClassTransient
	}
	return ClassPermanent
})

// IsNetworkFailure reports timeouts and transport-level errors.
func IsNetworkFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Coded is implemented by errors carrying a platform diagnostic.
type Coded interface {
	ErrorCode() int
	ErrorMessage() string
}

// Config bounds the retry loop.
type Config struct {
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	Jitter         time.Duration
	AttemptTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseBackoff:    500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Policy drives bounded retries of platform calls and invalidates media
// cache entries a failure implicates before the next attempt.
type Policy struct {
	cfg        Config
	classifier Classifier
	cache      interfaces.MediaCache
	logger     interfaces.Logger
}

func NewPolicy(cfg Config, classifier Classifier, cache interfaces.MediaCache, logger interfaces.Logger) *Policy {
	defaults := DefaultConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaults.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if classifier == nil {
		classifier = NetworkClassifier
	}
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Policy{cfg: cfg, classifier: classifier, cache: cache, logger: logger}
}

// maxStaleRetries bounds re-attempts after a stale media reference within
// one Do call.
const maxStaleRetries = 1

// isSettled reports an error already produced by a nested Do. Its own bound
// has been spent, so the enclosing loop must not run it again.
func isSettled(err error) bool {
	var publishErr *domain.PublishError
	return errors.As(err, &publishErr)
}

// Call describes one primitive platform call.
type Call[T any] struct {
	Operation string
	Invoke    func(ctx context.Context) (T, error)
	// Implicated names cache entries to drop before retrying err.
	Implicated func(err error, class Class) []interfaces.MediaKey
}

func (p *Policy) backoff() goretry.Backoff {
	b := goretry.NewExponential(p.cfg.BaseBackoff)
	b = goretry.WithCappedDuration(p.cfg.MaxBackoff, b)
	if p.cfg.Jitter > 0 {
		b = goretry.WithJitter(p.cfg.Jitter, b)
	}
	return goretry.WithMaxRetries(uint64(p.cfg.MaxAttempts-1), b)
}

// Do runs call under p. The result of the first successful attempt is
// returned; otherwise the failure is a *domain.PublishError.
func Do[T any](ctx context.Context, p *Policy, call Call[T]) (T, error) {
	var (
		result   T
		attempts int
		stale    int
	)
	logger := p.logger.WithContext(ctx)

	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempts++
		value, err := attempt(ctx, p.cfg.AttemptTimeout, call)
		if err == nil {
			result = value
			return nil
		}

		class := ClassPermanent
		if ctx.Err() == nil && !isSettled(err) {
			class = p.classifier.Classify(err)
		}
		if class == ClassStale {
			stale++
			if stale > maxStaleRetries {
				class = ClassPermanent
			}
		}
		logger.Warn("retry.attempt.failed",
			"operation", call.Operation,
			"attempt", attempts,
			"class", class.String(),
			"error", err,
		)
		if class == ClassPermanent {
			return err
		}
		p.invalidate(ctx, call.Operation, call.Implicated, err, class)
		return goretry.RetryableError(err)
	})
	if err == nil {
		if attempts > 1 {
			logger.Info("retry.recovered", "operation", call.Operation, "attempts", attempts)
		}
		return result, nil
	}

	var zero T
	return zero, toPublishError(call.Operation, attempts, err)
}

func attempt[T any](ctx context.Context, timeout time.Duration, call Call[T]) (T, error) {
	if timeout <= 0 {
		return call.Invoke(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call.Invoke(attemptCtx)
}

func (p *Policy) invalidate(ctx context.Context, operation string, implicated func(error, Class) []interfaces.MediaKey, err error, class Class) {
	if p.cache == nil || implicated == nil {
		return
	}
	for _, key := range implicated(err, class) {
		if invErr := p.cache.Invalidate(ctx, key); invErr != nil {
			p.logger.WithContext(ctx).Error("retry.invalidate.failed",
				"operation", operation,
				"key", key.String(),
				"error", invErr,
			)
			continue
		}
		p.logger.WithContext(ctx).Info("retry.cache.invalidated",
			"operation", operation,
			"key", key.String(),
		)
	}
}

func toPublishError(operation string, attempts int, err error) error {
	var existing *domain.PublishError
	if errors.As(err, &existing) {
		return existing
	}
	publishErr := &domain.PublishError{
		Operation: operation,
		Attempts:  attempts,
		Message:   err.Error(),
		Err:       err,
	}
	var coded Coded
	if errors.As(err, &coded) {
		publishErr.Code = coded.ErrorCode()
		publishErr.Message = coded.ErrorMessage()
	}
	return publishErr
}
