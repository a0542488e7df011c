// Package consolehttp 暴露执行核心的操作台接口：触发流水线、查看
// picks/计划、维护选择状态、提交批次与对账快照查询。
package consolehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradecore/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server 是操作台 HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// NewServer 构建操作台 server 并挂载全部路由。
func NewServer(addr string, api *Router) (*Server, error) {
	if api == nil {
		return nil, errors.New("console http server requires an api router")
	}
	if addr == "" {
		addr = ":9982"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.Register(router.Group("/api"))

	return &Server{addr: addr, router: router}, nil
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// requestLogger 记录操作台的人工操作，便于追踪调用。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), client, time.Since(start))
	}
}
