package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charhub/ttsrelay/internal/binding"
	"github.com/charhub/ttsrelay/internal/config"
	"github.com/charhub/ttsrelay/internal/database"
	"github.com/charhub/ttsrelay/internal/logger"
	"github.com/charhub/ttsrelay/internal/relay"
	"github.com/charhub/ttsrelay/internal/synthesis"
)

func main() {
	configPath := flag.String("config", "configs/ttsrelay.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infof("[main] TTS 中继服务启动中 (listen=%s, log_level=%s)", cfg.Server.Listen, cfg.Log.Level)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Errorf("[main] 打开数据库失败: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Errorf("[main] 数据库迁移失败: %v", err)
		os.Exit(1)
	}

	bindings := binding.NewStore(db, cfg.Synthesis.DefaultVoice)

	idleTimeout := time.Duration(cfg.Synthesis.IdleTimeout) * time.Second
	synth, err := synthesis.NewClient(synthesis.Config{
		APIURL:      cfg.Synthesis.APIURL,
		APIKey:      cfg.Synthesis.APIKey,
		Model:       cfg.Synthesis.Model,
		Speed:       cfg.Synthesis.Speed,
		IdleTimeout: idleTimeout,
	})
	if err != nil {
		logger.Errorf("[main] 创建合成驱动失败: %v", err)
		os.Exit(1)
	}

	server := relay.NewServer(cfg.Server.StreamPath, bindings, synth)
	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[main] 服务已就绪: http://localhost%s (流式接口 %s)", cfg.Server.Listen, cfg.Server.StreamPath)
		errCh <- httpServer.ListenAndServe()
	}()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("[main] 关闭 HTTP 服务出错: %v", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("[main] HTTP 服务运行出错: %v", err)
			os.Exit(1)
		}
	}

	logger.Info("[main] TTS 中继服务已停止")
}
