// Package loader watches the stock-pool file and hands out immutable
// snapshots, so entries can be added or retired without a restart.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"aurum/internal/logger"
)

// PoolEntry 绑定一个授权账户与其跟踪标的。
type PoolEntry struct {
	Auth      string `yaml:"auth"`
	StockCode string `yaml:"stock_code"`
	StockName string `yaml:"stock_name"`
}

type poolFile struct {
	Entries []PoolEntry `yaml:"pool"`
}

// PoolSnapshot 是某一时刻的去重结果。
type PoolSnapshot struct {
	Version  int
	LoadedAt time.Time
	Entries  []PoolEntry
}

// ChangeListener 在池子变更时被调用。
type ChangeListener func(PoolSnapshot)

// PoolLoader 从 YAML 文件加载标的池并监听热更新。
type PoolLoader struct {
	path    string
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	snapshot  PoolSnapshot
	listeners []ChangeListener
	closed    chan struct{}
}

// NewPoolLoader 读取池文件并开始监听 FS 事件。
func NewPoolLoader(path string) (*PoolLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("pool loader requires path")
	}
	l := &PoolLoader{path: path, closed: make(chan struct{})}
	if err := l.reload(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("pool watcher: %w", err)
	}
	// Watch the directory: editors replace the file, which would drop a
	// file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("pool watcher add: %w", err)
	}
	l.watcher = watcher
	go l.watchLoop()
	return l, nil
}

func (l *PoolLoader) watchLoop() {
	base := filepath.Base(l.path)
	for {
		select {
		case <-l.closed:
			return
		case evt, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(evt.Name) != base {
				continue
			}
			if !evt.Op.Has(fsnotify.Write) && !evt.Op.Has(fsnotify.Create) && !evt.Op.Has(fsnotify.Rename) {
				continue
			}
			if err := l.reload(); err != nil {
				logger.Errorf("pool reload failed (%s): %v", evt.Name, err)
				continue
			}
			l.notify()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("pool watcher error: %v", err)
		}
	}
}

// Snapshot 返回当前池子快照（深拷贝）。
func (l *PoolLoader) Snapshot() PoolSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe 注册监听器，并立即异步收到一次完整快照。
func (l *PoolLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("pool listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *PoolLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("pool listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *PoolLoader) Close() error {
	select {
	case <-l.closed:
		return nil
	default:
	}
	close(l.closed)
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func (l *PoolLoader) reload() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read pool file failed: %w", err)
	}
	var file poolFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse pool file failed: %w", err)
	}
	entries, err := normalizeEntries(file.Entries)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.snapshot = PoolSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Entries:  entries,
	}
	l.mu.Unlock()
	logger.Infof("pool loader reloaded %d entries from %s", len(entries), filepath.Base(l.path))
	return nil
}

// normalizeEntries trims, drops incomplete rows and rejects duplicate auth
// tokens: one token drives exactly one position.
func normalizeEntries(in []PoolEntry) ([]PoolEntry, error) {
	out := make([]PoolEntry, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, e := range in {
		e.Auth = strings.TrimSpace(e.Auth)
		e.StockCode = strings.TrimSpace(e.StockCode)
		e.StockName = strings.TrimSpace(e.StockName)
		if e.Auth == "" || e.StockCode == "" {
			continue
		}
		if seen[e.Auth] {
			return nil, fmt.Errorf("duplicate auth in pool: %s", e.Auth)
		}
		seen[e.Auth] = true
		out = append(out, e)
	}
	return out, nil
}

func cloneSnapshot(src PoolSnapshot) PoolSnapshot {
	dst := src
	dst.Entries = append([]PoolEntry(nil), src.Entries...)
	return dst
}
