package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"flacshare/logger"
	"flacshare/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// orphanLedgerKey Hash: "{ns}/{key}" -> Orphan JSON
const orphanLedgerKey = "flacshare:orphans"

// Orphan 是回滚删除失败后残留在对象存储中的 blob
type Orphan struct {
	Namespace  storage.Namespace `json:"namespace"`
	Key        string            `json:"key"`
	Cause      string            `json:"cause"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// OrphanLedger 记录残留对象，供 `orphans sweep` 之后重试删除
type OrphanLedger struct {
	client *redis.Client
	now    func() time.Time
	log    *zap.Logger
}

// NewOrphanLedger creates a ledger on top of client.
func NewOrphanLedger(client *redis.Client) *OrphanLedger {
	return &OrphanLedger{client: client, now: time.Now, log: logger.Named("orphans")}
}

// RecordOrphan implements upload.OrphanRecorder. Recording the same blob twice keeps the latest cause.
func (l *OrphanLedger) RecordOrphan(ctx context.Context, ns storage.Namespace, key string, cause error) error {
	if l.client == nil {
		return errors.New("redis client not initialized")
	}

	entry := Orphan{Namespace: ns, Key: key, RecordedAt: l.now().UTC()}
	if cause != nil {
		entry.Cause = cause.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal orphan: %w", err)
	}
	if err := l.client.HSet(ctx, orphanLedgerKey, storage.ObjectName(ns, key), data).Err(); err != nil {
		return fmt.Errorf("failed to record orphan %s: %w", storage.ObjectName(ns, key), err)
	}
	return nil
}

// List returns every recorded orphan, oldest first.
func (l *OrphanLedger) List(ctx context.Context) ([]Orphan, error) {
	if l.client == nil {
		return nil, errors.New("redis client not initialized")
	}

	result, err := l.client.HGetAll(ctx, orphanLedgerKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list orphans: %w", err)
	}

	orphans := make([]Orphan, 0, len(result))
	for field, raw := range result {
		var o Orphan
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			l.log.Warn("跳过无法解析的残留记录", zap.String("field", field), zap.Error(err))
			continue
		}
		orphans = append(orphans, o)
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].RecordedAt.Equal(orphans[j].RecordedAt) {
			return storage.ObjectName(orphans[i].Namespace, orphans[i].Key) < storage.ObjectName(orphans[j].Namespace, orphans[j].Key)
		}
		return orphans[i].RecordedAt.Before(orphans[j].RecordedAt)
	})
	return orphans, nil
}

// Remove drops a blob from the ledger.
func (l *OrphanLedger) Remove(ctx context.Context, ns storage.Namespace, key string) error {
	if l.client == nil {
		return errors.New("redis client not initialized")
	}
	return l.client.HDel(ctx, orphanLedgerKey, storage.ObjectName(ns, key)).Err()
}

// SweepResult 汇总一次清理的结果
type SweepResult struct {
	Deleted int
	Failed  int
}

// Sweep retries the delete of every recorded orphan. Entries are removed from
// the ledger only when the delete succeeds.
func (l *OrphanLedger) Sweep(ctx context.Context, blobs storage.BlobStore) (SweepResult, error) {
	orphans, err := l.List(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var res SweepResult
	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := blobs.Delete(ctx, o.Namespace, o.Key); err != nil {
			res.Failed++
			l.log.Warn("残留对象删除仍然失败", zap.String("object", storage.ObjectName(o.Namespace, o.Key)), zap.Error(err))
			continue
		}
		if err := l.Remove(ctx, o.Namespace, o.Key); err != nil {
			return res, fmt.Errorf("failed to remove orphan %s from ledger: %w", storage.ObjectName(o.Namespace, o.Key), err)
		}
		res.Deleted++
	}

	l.log.Info("残留对象清理完成", zap.Int("deleted", res.Deleted), zap.Int("failed", res.Failed))
	return res, nil
}
