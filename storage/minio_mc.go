package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	// 按命名空间(audio/cover/...)统计的对象数与大小
	Namespaces map[string]*NamespaceStats
}

// NamespaceStats is the usage of one top-level prefix.
type NamespaceStats struct {
	Objects int64
	Size    int64
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// ListObjects 递归列出前缀下的所有对象并汇总统计
func (s *MinioBlobStore) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, nil, fmt.Errorf("检查存储桶是否存在失败: %w", err)
	}
	if !exists {
		return nil, nil, fmt.Errorf("存储桶 %s 不存在", s.bucket)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, summarize(objects), nil
}

func summarize(objects []ObjectInfo) *BucketStats {
	stats := &BucketStats{Namespaces: make(map[string]*NamespaceStats)}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}

		ns := "(root)"
		if i := strings.Index(obj.Key, "/"); i > 0 {
			ns = obj.Key[:i]
		}
		entry, ok := stats.Namespaces[ns]
		if !ok {
			entry = &NamespaceStats{}
			stats.Namespaces[ns] = entry
		}
		entry.Objects++
		entry.Size += obj.Size
	}
	return stats
}

// PrintBucketStatus 打印存储桶状态，verbose 时列出每个对象
func (s *MinioBlobStore) PrintBucketStatus(ctx context.Context, w io.Writer, prefix string, verbose bool) error {
	objects, stats, err := s.ListObjects(ctx, prefix)
	if err != nil {
		return err
	}
	writeBucketStatus(w, s.bucket, prefix, objects, stats, verbose)
	return nil
}

func writeBucketStatus(w io.Writer, bucket, prefix string, objects []ObjectInfo, stats *BucketStats, verbose bool) {
	fmt.Fprintf(w, "存储桶: %s\n", bucket)
	if prefix != "" {
		fmt.Fprintf(w, "前缀过滤: %s\n", prefix)
	}
	fmt.Fprintf(w, "总文件数: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "总存储大小: %s\n", humanize.IBytes(uint64(stats.TotalSize)))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "最后更新时间: %s (%s)\n", stats.LastModified.Format("2006-01-02 15:04:05"), humanize.Time(stats.LastModified))
	}

	names := make([]string, 0, len(stats.Namespaces))
	for ns := range stats.Namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		entry := stats.Namespaces[ns]
		fmt.Fprintf(w, "  %-8s %s 个文件, %s\n", ns, humanize.Comma(entry.Objects), humanize.IBytes(uint64(entry.Size)))
	}

	if !verbose {
		return
	}
	fmt.Fprintln(w, "\n文件列表:")
	for _, obj := range objects {
		fmt.Fprintf(w, "  %s  %s  %s\n", obj.LastModified.Format("2006-01-02 15:04:05"), humanize.IBytes(uint64(obj.Size)), obj.Key)
	}
}

// DeletePrefix 递归删除前缀下的所有对象，返回删除数量
func (s *MinioBlobStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if strings.Trim(prefix, "/") == "" {
		return 0, fmt.Errorf("拒绝删除整个存储桶 %s", s.bucket)
	}

	// 提前返回时停止 minio-go 的生产者 goroutine
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var toDelete []minio.ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return 0, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		toDelete = append(toDelete, object)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(toDelete))
	for _, obj := range toDelete {
		objectsCh <- obj
	}
	close(objectsCh)

	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rerr.ObjectName, rerr.Err)
		}
	}

	s.log.Info("已删除前缀下的对象", zap.String("prefix", prefix), zap.Int("count", len(toDelete)))
	return len(toDelete), nil
}
