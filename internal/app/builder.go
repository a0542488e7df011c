package app

import (
	"fmt"

	"tradecore/internal/config"
	"tradecore/internal/controls"
	"tradecore/internal/gateway/binance"
	"tradecore/internal/gateway/decision"
	"tradecore/internal/pipeline"
	"tradecore/internal/reconcile"
	"tradecore/internal/store"
	"tradecore/internal/submit"
	consolehttp "tradecore/internal/transport/http/console"
)

// buildApp 手工装配依赖图。组件之间全部显式注入，没有全局状态。
func buildApp(cfg *config.Config) (*App, error) {
	decisionClient, err := decision.NewClient(cfg.Decision)
	if err != nil {
		return nil, fmt.Errorf("构建 decision 客户端失败: %w", err)
	}

	gateway, err := binance.New(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("构建交易所网关失败: %w", err)
	}

	hub := reconcile.NewHub()
	poller := reconcile.NewPoller(gateway, hub, cfg.Reconcile)

	orchestrator := pipeline.NewOrchestrator(decisionClient, hub, cfg.Policy)
	submitter := submit.NewSubmitter(gateway, cfg.Policy)

	controlStore := controls.NewStore(cfg.Controls)
	if err := controlStore.Load(); err != nil {
		return nil, err
	}

	var journal *store.Store
	if cfg.Store.Path != "" {
		journal, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
	}

	api := &consolehttp.Router{
		Orchestrator: orchestrator,
		Submitter:    submitter,
		Poller:       poller,
		Hub:          hub,
		Controls:     controlStore,
		Journal:      journal,
	}
	httpSrv, err := consolehttp.NewServer(cfg.App.HTTPAddr, api)
	if err != nil {
		return nil, fmt.Errorf("构建操作台 http 服务失败: %w", err)
	}

	return &App{
		cfg:      cfg,
		httpSrv:  httpSrv,
		poller:   poller,
		controls: controlStore,
	}, nil
}
