package redis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lock is a held distributed lock. Only the holder's token can release it.
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
}

type Locker struct {
	client    *Client
	keyPrefix string
}

func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &Locker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire takes the lock with SET NX or fails with ErrLockNotAcquired.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lockKey := l.keyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", lockKey)

	return &Lock{
		client: l.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// TryAcquire retries Acquire with capped exponential backoff until timeout elapses.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	backoff := 10 * time.Millisecond

	for {
		lock, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff = min(backoff*2, 500*time.Millisecond)
		}
	}
}

func (lock *Lock) Key() string {
	return lock.key
}

// Release deletes the lock if this holder still owns it.
func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}

// DetectionLock serializes detection runs per key. A run that cannot get the lock
// within wait fails with 409.
type DetectionLock struct {
	locker *Locker
	ttl    time.Duration
	wait   time.Duration
}

func NewDetectionLock(locker *Locker, ttl, wait time.Duration) *DetectionLock {
	return &DetectionLock{
		locker: locker,
		ttl:    ttl,
		wait:   wait,
	}
}

func (d *DetectionLock) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := d.locker.TryAcquire(ctx, key, d.ttl, d.wait)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, httperror.NewHTTPErrorf(http.StatusConflict, "a detection run is already in progress for %s", key)
		}
		return nil, httperror.WrapError(http.StatusInternalServerError, err)
	}
	return lock.Release, nil
}
