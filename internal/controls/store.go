// Package controls holds the operator's per-symbol selection state:
// 勾选哪些 symbol、TP 档位、金额与杠杆覆盖。文件是唯一真源，
// 打开 watch 后由 fsnotify 热加载。
package controls

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/logger"
	"tradecore/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Store struct {
	path  string
	watch bool

	mu    sync.RWMutex
	items []types.CoinControl
}

func NewStore(cfg config.ControlsConfig) *Store {
	return &Store{path: cfg.Path, watch: cfg.Watch}
}

// Load 从文件读取选择状态。文件不存在视为空选择，不算错误。
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		logger.Warnf("controls: 文件 %s 不存在，按空选择处理", s.path)
		s.replace(nil)
		return nil
	}
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取 controls 文件失败 (%s): %w", s.path, err)
	}
	var items []types.CoinControl
	if err := v.UnmarshalKey("controls", &items, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return fmt.Errorf("解析 controls 失败: %w", err)
	}
	s.replace(items)
	logger.Infof("controls: 已加载 %d 条选择状态", len(items))
	return nil
}

func (s *Store) replace(items []types.CoinControl) {
	normalized := make([]types.CoinControl, 0, len(items))
	for _, c := range items {
		normalized = append(normalized, c.Normalized())
	}
	s.mu.Lock()
	s.items = normalized
	s.mu.Unlock()
}

// All 返回全部选择状态的副本。
func (s *Store) All() []types.CoinControl {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CoinControl, len(s.items))
	copy(out, s.items)
	return out
}

// Selected 返回去重后的勾选项，提交批次只认这个视图。
func (s *Store) Selected() []types.CoinControl {
	return types.DedupeControls(s.All())
}

// Set 更新单个 symbol 的选择状态（不存在则追加）。
func (s *Store) Set(control types.CoinControl) {
	control = control.Normalized()
	if control.Symbol == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].Symbol == control.Symbol {
			s.items[i] = control
			return
		}
	}
	s.items = append(s.items, control)
}

// Watch 监听 controls 文件变更并热加载，直到 ctx 结束。
// 编辑器通常以 rename+create 方式写文件，所以监听目录而非文件本身。
func (s *Store) Watch(ctx context.Context) error {
	if !s.watch || s.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("监听目录 %s 失败: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var debounce *time.Timer
	reload := func() {
		if err := s.Load(); err != nil {
			logger.Errorf("controls: 热加载失败: %v", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			// 写入往往是多个事件连发，合并 200ms 内的重复触发
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("controls: watcher 错误: %v", err)
		}
	}
}
