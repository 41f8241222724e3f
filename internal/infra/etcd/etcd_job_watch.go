package etcd

import (
	"context"
	"errors"
	"fmt"
	"path"

	"swipework/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errWatchClosed = errors.New("etcd watch channel closed")

// Subscribe delivers the current window as added changes, then watches the
// whole job prefix from the next revision.
func (s *etcdJobStore) Subscribe(ctx context.Context, w domain.Window, onChanges func([]domain.Change), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	initCtx, span := s.tracer.Start(ctx, "repo.etcd.SubscribeJobs")
	span.SetAttributes(attribute.String("window.order_by", w.OrderBy), attribute.Int("window.limit", w.Limit))
	docs, rev, err := s.load(initCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load subscription window")
		span.End()
		cancel()
		return nil, err
	}
	page := selectPage(docs, domain.Query{OrderBy: w.OrderBy, Descending: w.Descending, Limit: w.Limit})
	span.SetAttributes(attribute.Int64("etcd.revision", rev), attribute.Int("window.size", len(page.Listings)))
	span.End()

	if len(page.Listings) > 0 {
		initial := make([]domain.Change, 0, len(page.Listings))
		for _, l := range page.Listings {
			initial = append(initial, domain.Change{Type: domain.ChangeAdded, ID: l.ID, Listing: l})
		}
		onChanges(initial)
	}

	watchChan := s.client.Watch(ctx, JobsDir, clientv3.WithPrefix(), clientv3.WithRev(rev+1))
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.logger.Info("watching jobs", "revision", rev+1)
		for watchResp := range watchChan {
			if err := watchResp.Err(); err != nil {
				if ctx.Err() == nil {
					onError(fmt.Errorf("job watch failed: %w", err))
				}
				return
			}
			changes := s.translate(watchResp.Events)
			if len(changes) > 0 && ctx.Err() == nil {
				onChanges(changes)
			}
		}
		if ctx.Err() == nil {
			onError(errWatchClosed)
		}
		s.logger.Info("stopped watching jobs")
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (s *etcdJobStore) translate(events []*clientv3.Event) []domain.Change {
	changes := make([]domain.Change, 0, len(events))
	for _, event := range events {
		key := string(event.Kv.Key)
		switch event.Type {
		case clientv3.EventTypePut:
			d, err := decodeDocument(key, event.Kv.Value, event.Kv.ModRevision)
			if err != nil {
				s.logger.Warn("failed to decode watched job", "key", key, "error", err)
				continue
			}
			typ := domain.ChangeModified
			if event.IsCreate() {
				typ = domain.ChangeAdded
			}
			changes = append(changes, domain.Change{Type: typ, ID: d.id, Listing: d.listing})
		case clientv3.EventTypeDelete:
			changes = append(changes, domain.Change{Type: domain.ChangeRemoved, ID: path.Base(key)})
		}
	}
	return changes
}
