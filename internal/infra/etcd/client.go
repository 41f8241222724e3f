package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swipework/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// NewClient connects to etcd and checks that the jobs prefix is readable.
func NewClient(ctx context.Context, endpoints []string, timeout time.Duration) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:            endpoints,
		DialTimeout:          timeout,
		DialKeepAliveTime:    30 * time.Second,
		DialKeepAliveTimeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	if err := Ping(ctx, cli, timeout); err != nil {
		cli.Close()
		return nil, err
	}
	return cli, nil
}

// Ping reads the size of the jobs prefix within timeout.
func Ping(ctx context.Context, cli *clientv3.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := cli.Get(ctx, JobsDir, clientv3.WithPrefix(), clientv3.WithCountOnly()); err != nil {
		return fmt.Errorf("etcd health check failed: %w", err)
	}
	return nil
}

// errKeyMissing is returned by compareAndSwap when key does not exist.
var errKeyMissing = errors.New("key does not exist")

// compareAndSwap rewrites the value at key with mutate, committing only if
// nobody wrote the key in between. Lost races are retried.
func compareAndSwap(ctx context.Context, cli *clientv3.Client, key string, mutate func([]byte) ([]byte, error)) ([]byte, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		resp, err := cli.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(resp.Kvs) == 0 {
			return nil, errKeyMissing
		}
		kv := resp.Kvs[0]

		next, err := mutate(kv.Value)
		if err != nil {
			return nil, err
		}
		txn, err := cli.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)).
			Then(clientv3.OpPut(key, string(next))).
			Commit()
		if err != nil {
			return nil, err
		}
		if txn.Succeeded {
			return next, nil
		}
	}
	return nil, domain.ErrConflict
}
