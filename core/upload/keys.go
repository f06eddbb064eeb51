package upload

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"
)

// keyClock hands out commit timestamps in milliseconds, strictly increasing
// even when the wall clock stalls or steps back.
type keyClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func newKeyClock(now func() time.Time) *keyClock {
	if now == nil {
		now = time.Now
	}
	return &keyClock{now: now}
}

func (c *keyClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// StorageKey builds "{uploaderId}/{commitTimestamp}_{originalFilename}".
func StorageKey(uploaderID int64, timestamp int64, filename string) string {
	return fmt.Sprintf("%d/%d_%s", uploaderID, timestamp, baseName(filename))
}

func baseName(filename string) string {
	// 浏览器可能带上客户端路径，两种分隔符都要处理
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
