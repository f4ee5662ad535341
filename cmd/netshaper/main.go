// Package main 提供 netshaper 命令行入口
//
// 在本地回环 TCP 连接上按配置的速率整形一次数据传输，
// 输出实际速率与各节流器窗口快照，可选导出 Prometheus 指标。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-netshaper"
	"github.com/dep2p/go-netshaper/config"
	"github.com/dep2p/go-netshaper/pkg/lib/log"
)

var logger = log.Logger("netshaper/cmd")

// version 版本号
const version = "1.0.0"

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：这次运行的覆盖值
//   JSON 配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 配置
	// ─────────────────────────────────────────────────────────────────────
	configFile = flag.String("config", "", "配置文件路径")
	preset     = flag.String("preset", "", "预设配置 (default/unlimited/constrained)")

	// ─────────────────────────────────────────────────────────────────────
	// 整形参数（覆盖配置文件）
	// ─────────────────────────────────────────────────────────────────────
	upLimit   = flag.Uint64("up", 0, "出站速率上限 KiB/s（0 = 不限制）")
	downLimit = flag.Uint64("down", 0, "入站速率上限 KiB/s（0 = 不限制）")
	killLimit = flag.Uint64("kill", 0, "累计流量硬上限 MB（0 = 禁用）")
	tos       = flag.Int("tos", 0, "新连接 IP TOS 标记")

	// ─────────────────────────────────────────────────────────────────────
	// 传输参数
	// ─────────────────────────────────────────────────────────────────────
	totalBytes = flag.Int("bytes", 1<<20, "传输总字节数")
	chunkSize  = flag.Int("chunk", 16*1024, "单次写入字节数")

	// ─────────────────────────────────────────────────────────────────────
	// 观测
	// ─────────────────────────────────────────────────────────────────────
	metricsAddr = flag.String("metrics", "", "Prometheus 指标监听地址（空 = 不导出）")
	logLevel    = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Printf("netshaper %s\n", version)
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	if *logLevel != "" {
		lvl, err := log.ParseLevel(*logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(lvl)
	}

	if *chunkSize <= 0 || *totalBytes <= 0 {
		return errors.New("-bytes 与 -chunk 必须大于 0")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []netshaper.Option{netshaper.WithConfig(cfg)}

	addr := *metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.ListenAddr
	}
	if addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, netshaper.WithMetrics(reg))

		srv := serveMetrics(addr, cfg.Metrics.Path, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	shaper, err := netshaper.Start(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = shaper.Stop(context.Background()) }()

	logger.Info("启动回环传输",
		"bytes", *totalBytes,
		"chunk", *chunkSize,
		"upKiBps", cfg.Throttle.UpLimitKBps,
		"downKiBps", cfg.Throttle.DownLimitKBps)

	res, err := transfer(ctx, shaper, *totalBytes, *chunkSize)
	if err != nil {
		return fmt.Errorf("传输失败: %w", err)
	}

	printResult(res, shaper)
	return nil
}

// loadConfig 加载配置文件并应用命令行覆盖
func loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	if err := config.ApplyPreset(cfg, *preset); err != nil {
		return nil, err
	}

	if isFlagSet("up") {
		cfg.Throttle.UpLimitKBps = *upLimit
	}
	if isFlagSet("down") {
		cfg.Throttle.DownLimitKBps = *downLimit
	}
	if isFlagSet("kill") {
		cfg.Throttle.KillLimitMB = *killLimit
	}
	if isFlagSet("tos") {
		cfg.Throttle.TypeOfService = *tos
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// isFlagSet 检查参数是否在命令行中显式设置
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// serveMetrics 启动指标 HTTP 服务
func serveMetrics(addr, path string, reg *prometheus.Registry) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务退出", "addr", addr, "error", err)
		}
	}()
	fmt.Printf("📈 指标地址: http://%s%s\n", addr, path)
	return srv
}

// ═══════════════════════════════════════════════════════════════════════════
// 回环传输
// ═══════════════════════════════════════════════════════════════════════════

type result struct {
	sent     int64
	received int64
	elapsed  time.Duration
}

// transfer 通过整形连接在本地回环上传输 total 字节
func transfer(ctx context.Context, shaper *netshaper.Shaper, total, chunk int) (result, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return result{}, err
	}
	defer ln.Close()

	var res result
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		ln.Close()
	}()

	// 接收端
	g.Go(func() error {
		raw, err := ln.Accept()
		if err != nil {
			return err
		}
		conn, err := shaper.WrapConn(raw)
		if err != nil {
			raw.Close()
			return err
		}
		defer conn.Close()

		res.received, err = io.Copy(io.Discard, conn)
		return err
	})

	// 发送端
	g.Go(func() error {
		var d net.Dialer
		raw, err := d.DialContext(gctx, "tcp", ln.Addr().String())
		if err != nil {
			return err
		}
		conn, err := shaper.WrapConn(raw)
		if err != nil {
			raw.Close()
			return err
		}
		defer conn.Close()

		buf := make([]byte, chunk)
		for res.sent < int64(total) {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := chunk
			if remaining := int64(total) - res.sent; remaining < int64(n) {
				n = int(remaining)
			}
			written, err := conn.Write(buf[:n])
			res.sent += int64(written)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return res, err
	}
	res.elapsed = time.Since(start)
	return res, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 输出
// ═══════════════════════════════════════════════════════════════════════════

func printResult(res result, shaper *netshaper.Shaper) {
	rate := float64(res.sent) / res.elapsed.Seconds() / 1024

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("  发送: %d B  接收: %d B  耗时: %s\n", res.sent, res.received, res.elapsed.Round(time.Millisecond))
	fmt.Printf("  实际速率: %.1f KiB/s\n", rate)
	fmt.Println("───────────────────────────────────────────────────────")

	snaps := shaper.Snapshots()
	for _, c := range []netshaper.Category{netshaper.CategoryOut, netshaper.CategoryIn, netshaper.CategoryInRequest} {
		s := snaps[c]
		fmt.Printf("  %-6s avg=%8.1f KiB/s  limit=%8.1f KiB/s  total=%d B\n",
			s.ShortName, s.AvgSpeed/1024, s.TargetSpeed/1024, s.TotalBytes)
		fmt.Printf("         history=%v\n", s.History)
	}
	fmt.Println("═══════════════════════════════════════════════════════")
}

func printHelp() {
	var b strings.Builder
	b.WriteString("netshaper - 滑动窗口流量整形演示\n\n")
	b.WriteString("用法:\n  netshaper [参数]\n\n")
	b.WriteString("示例:\n")
	b.WriteString("  netshaper -up 256 -bytes 4194304\n")
	b.WriteString("  netshaper -preset constrained -metrics 127.0.0.1:9464\n")
	b.WriteString("  netshaper -config netshaper.json -log-level debug\n\n")
	b.WriteString("参数:\n")
	fmt.Print(b.String())
	flag.PrintDefaults()
}
