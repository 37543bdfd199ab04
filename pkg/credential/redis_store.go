/*
 * Copyright (C) 2020-2022, IrineSistiana
 *
 * This file is part of mosdns.
 *
 * mosdns is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * mosdns is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package credential

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	nopLogger = zap.NewNop()

	// ErrRedisDisabled is returned while the client is disabled after a
	// failure and the background ping has not succeeded yet.
	ErrRedisDisabled = errors.New("redis temporarily disabled")
)

type RedisStoreOpts struct {
	// Client cannot be nil.
	Client redis.Cmdable

	// ClientCloser closes Client when RedisStore.Close is called.
	// Optional.
	ClientCloser io.Closer

	// Prefix is prepended to every key. Optional.
	Prefix string

	// ClientTimeout specifies the timeout for read and write operations.
	// Default is 1s.
	ClientTimeout time.Duration

	// Logger is the *zap.Logger for this RedisStore.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

func (opts *RedisStoreOpts) Init() error {
	if opts.Client == nil {
		return errors.New("nil client")
	}
	if opts.ClientTimeout <= 0 {
		opts.ClientTimeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	return nil
}

// RedisStore keeps the credential in redis so that it survives restarts and
// is shared by every gateway process of the same session.
type RedisStore struct {
	opts           RedisStoreOpts
	clientDisabled uint32

	// Keys whose removal failed. They are deleted before the client is
	// enabled again, so a dropped credential never comes back.
	pendingRemove sync.Map
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(opts RedisStoreOpts) (*RedisStore, error) {
	if err := opts.Init(); err != nil {
		return nil, err
	}
	return &RedisStore{opts: opts}, nil
}

func (r *RedisStore) disabled() bool {
	return atomic.LoadUint32(&r.clientDisabled) != 0
}

func (r *RedisStore) disableClient() {
	if atomic.CompareAndSwapUint32(&r.clientDisabled, 0, 1) {
		r.opts.Logger.Warn("redis temporarily disabled")
		go func() {
			const maxBackoff = time.Second * 30
			backoff := time.Millisecond * 100
			for {
				time.Sleep(backoff)
				ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*500)
				err := r.opts.Client.Ping(ctx).Err()
				cancel()
				if err != nil {
					if backoff >= maxBackoff {
						backoff = maxBackoff
					} else {
						backoff += time.Duration(rand.Intn(1000))*time.Millisecond + time.Second
					}
					r.opts.Logger.Warn("redis ping failed", zap.Error(err), zap.Duration("next_ping", backoff))
					continue
				}
				if err := r.flushPendingRemove(); err != nil {
					r.opts.Logger.Warn("redis pending removal failed", zap.Error(err), zap.Duration("next_ping", backoff))
					continue
				}
				atomic.StoreUint32(&r.clientDisabled, 0)
				return
			}
		}()
	}
}

func (r *RedisStore) flushPendingRemove() error {
	var err error
	r.pendingRemove.Range(func(k, _ any) bool {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
		defer cancel()
		if err = r.opts.Client.Del(ctx, k.(string)).Err(); err != nil {
			return false
		}
		r.pendingRemove.Delete(k)
		return true
	})
	return err
}

func (r *RedisStore) key(k string) string {
	return r.opts.Prefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if r.disabled() {
		return "", false, ErrRedisDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.ClientTimeout)
	defer cancel()
	v, err := r.opts.Client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		r.opts.Logger.Warn("redis get", zap.Error(err))
		r.disableClient()
		return "", false, err
	}
	return v, true, nil
}

// Set stores value without expiry. Tokens are not expired client side.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if r.disabled() {
		return ErrRedisDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.ClientTimeout)
	defer cancel()
	if err := r.opts.Client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		r.opts.Logger.Warn("redis set", zap.Error(err))
		r.disableClient()
		return err
	}
	r.pendingRemove.Delete(r.key(key))
	return nil
}

// Remove deletes key. If redis is unavailable the removal is queued and
// applied before the client is enabled again, and the error is returned.
func (r *RedisStore) Remove(ctx context.Context, key string) error {
	k := r.key(key)
	if r.disabled() {
		r.pendingRemove.Store(k, struct{}{})
		return ErrRedisDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.ClientTimeout)
	defer cancel()
	if err := r.opts.Client.Del(ctx, k).Err(); err != nil {
		r.opts.Logger.Warn("redis del", zap.Error(err))
		r.pendingRemove.Store(k, struct{}{})
		r.disableClient()
		return err
	}
	return nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	if f := r.opts.ClientCloser; f != nil {
		return f.Close()
	}
	return nil
}
