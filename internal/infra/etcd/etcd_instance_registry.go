package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// InstancesDir holds one leased key per running feed node.
const InstancesDir = "/swipework/instances/"

// InstanceRegistry announces this feed node in etcd under a lease, so the
// key disappears when the node dies.
type InstanceRegistry struct {
	client  *clientv3.Client
	logger  *slog.Logger
	leaseID clientv3.LeaseID
	key     string
}

func NewInstanceRegistry(client *clientv3.Client, logger *slog.Logger) *InstanceRegistry {
	return &InstanceRegistry{
		client: client,
		logger: logger.With("component", "instance-registry"),
	}
}

// Register puts the node's address under a lease of ttl seconds and keeps
// the lease alive until ctx is done or Deregister is called.
func (r *InstanceRegistry) Register(ctx context.Context, instanceID, addr string, ttl int64) error {
	r.key = InstancesDir + instanceID

	leaseResp, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	if _, err := r.client.Put(ctx, r.key, addr, clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to put instance key: %w", err)
	}

	keepAliveCh, err := r.client.KeepAlive(ctx, r.leaseID)
	if err != nil {
		return fmt.Errorf("failed to start keep-alive: %w", err)
	}
	go func() {
		for ka := range keepAliveCh {
			r.logger.Debug("lease keep-alive refreshed", "lease_id", ka.ID, "ttl", ka.TTL)
		}
		r.logger.Warn("keep-alive channel closed, instance registration may have expired")
	}()

	r.logger.Info("instance registered", "key", r.key, "addr", addr)
	return nil
}

// Deregister revokes the lease, deleting the instance key.
func (r *InstanceRegistry) Deregister(ctx context.Context) error {
	if r.leaseID == clientv3.NoLease {
		return nil
	}
	r.logger.Info("deregistering instance", "key", r.key)
	if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	return nil
}

// Instances lists the registered nodes as id to address.
func (r *InstanceRegistry) Instances(ctx context.Context) (map[string]string, error) {
	resp, err := r.client.Get(ctx, InstancesDir, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	out := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out[strings.TrimPrefix(string(kv.Key), InstancesDir)] = string(kv.Value)
	}
	return out, nil
}
