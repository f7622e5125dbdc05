package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"github.com/lumenpictures/budget_backend/config"
)

const groupLockTTL = 30 * time.Second

// AcquireSiblingGroupLock serializes sibling-group evaluation across workers.
// The sibling read-modify-write in the invoice match must never interleave
// with another evaluation of the same (project, po, detail) group.
//
// Returns (nil, nil) when no redis lock client is configured; single-instance
// deployments run unlocked.
func AcquireSiblingGroupLock(ctx context.Context, projectNumber, poNumber, detailNumber int) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}

	lockKey := fmt.Sprintf("siblings:%d:%d:%d", projectNumber, poNumber, detailNumber)
	lock, err := locker.Obtain(ctx, lockKey, groupLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.ExponentialBackoff(100*time.Millisecond, 2*time.Second), 10),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("sibling group %s is locked by another worker", lockKey)
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func ReleaseSiblingGroupLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	_ = lock.Release(ctx)
}
