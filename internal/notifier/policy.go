package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"vms-inventory/internal/config"
)

// ErrRemoteUnavailable is returned once every attempt of a policy has failed
var ErrRemoteUnavailable = errors.New("remote system unavailable")

// Policy bounds how a remote call is retried.
// An attempt fails when fn returns an error or when IsSuccess rejects the ack.
type Policy struct {
	MaxAttempts    int
	Delay          time.Duration
	AttemptTimeout time.Duration
	IsSuccess      func(ack *RemoteAck) bool
}

// DefaultPolicy returns three attempts two seconds apart with a ten second attempt timeout
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		Delay:          2 * time.Second,
		AttemptTimeout: 10 * time.Second,
		IsSuccess:      AckSucceeded,
	}
}

// PolicyFromConfig overrides DefaultPolicy with the positive values of cfg
func PolicyFromConfig(cfg config.IMSConfig) Policy {
	policy := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		policy.Delay = cfg.RetryDelay
	}
	if cfg.AttemptTimeout > 0 {
		policy.AttemptTimeout = cfg.AttemptTimeout
	}
	return policy
}

// Budget is the longest Attempt can run when every attempt times out
func (p Policy) Budget() time.Duration {
	if p.MaxAttempts <= 0 {
		return 0
	}
	attempts := time.Duration(p.MaxAttempts)
	return attempts*p.AttemptTimeout + (attempts-1)*p.Delay
}

// AckSucceeded accepts only HTTP 200 with an explicit "success" status in the body
func AckSucceeded(ack *RemoteAck) bool {
	return ack != nil && ack.StatusCode == 200 && ack.Status == "success"
}

// AttemptError describes why a single attempt failed
type AttemptError struct {
	Attempt int
	Err     error
}

func (e *AttemptError) Error() string {
	return e.Err.Error()
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

var errRejected = errors.New("remote rejected the request")

// Attempt calls fn until an attempt succeeds or MaxAttempts is reached.
// Each call runs under its own AttemptTimeout. onFailure, when set, observes every failed attempt.
func (p Policy) Attempt(ctx context.Context, fn func(ctx context.Context) (*RemoteAck, error), onFailure func(*AttemptError)) (*RemoteAck, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	isSuccess := p.IsSuccess
	if isSuccess == nil {
		isSuccess = AckSucceeded
	}

	delay := p.Delay
	if delay <= 0 {
		// NewConstant panics on a non-positive duration
		delay = time.Nanosecond
	}
	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(delay))

	var (
		ack     *RemoteAck
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		attemptCtx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}

		got, err := fn(attemptCtx)
		if err == nil && !isSuccess(got) {
			err = errRejected
		}
		if err != nil {
			if onFailure != nil {
				onFailure(&AttemptError{Attempt: attempt, Err: err})
			}
			return retry.RetryableError(err)
		}

		ack = got
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(ErrRemoteUnavailable, ctxErr)
		}
		return nil, errors.Join(ErrRemoteUnavailable, err)
	}

	return ack, nil
}
