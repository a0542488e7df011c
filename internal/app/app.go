// Package app 负责应用级编排：加载配置→初始化依赖→启动对账轮询与
// 操作台 HTTP 服务。
package app

import (
	"context"
	"errors"
	"fmt"

	"tradecore/internal/config"
	"tradecore/internal/controls"
	"tradecore/internal/logger"
	"tradecore/internal/reconcile"
	consolehttp "tradecore/internal/transport/http/console"

	"golang.org/x/sync/errgroup"
)

// App 持有全部运行期组件。
type App struct {
	cfg      *config.Config
	httpSrv  *consolehttp.Server
	poller   *reconcile.Poller
	controls *controls.Store
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg)
}

// Run 启动对账轮询、controls 热加载与操作台 HTTP 服务，
// 任一组件出错整体退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := a.poller.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		err := a.controls.Watch(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("console http server error: %w", err)
		}
		return nil
	})

	logger.Infof("app: 启动完成 http=%s reconcile=%s", a.httpSrv.Addr(), a.cfg.Reconcile.Interval())
	return group.Wait()
}
