package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/hoshinonyaruko/crumbway/api"
	"github.com/hoshinonyaruko/crumbway/config"
	"github.com/hoshinonyaruko/crumbway/memimg"
	"github.com/hoshinonyaruko/crumbway/scenario"
	"github.com/hoshinonyaruko/crumbway/session"
	"github.com/hoshinonyaruko/crumbway/sqlite"
	"github.com/hoshinonyaruko/crumbway/weather"
)

// DefaultSessionID 启动时创建的会话
const DefaultSessionID = "default"

func main() {
	// Initialize the configuration
	cfg := config.LoadConfig("./config.json")
	EnsureFoldersExist(cfg.IconsDir)

	// 载入物品图标到内存
	if err := memimg.LoadIcons(cfg.IconsDir); err != nil {
		log.Printf("Failed to load icons from %s: %v", cfg.IconsDir, err)
	}
	stop := make(chan struct{})
	// 检测并热更新到内存 加速绘图
	go func() {
		if err := memimg.WatchIcons(cfg.IconsDir, stop); err != nil {
			log.Printf("icon watcher stopped: %v", err)
		}
	}()

	db, err := sqlite.Open(cfg.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	sc := scenario.Default()
	if cfg.ScenarioPath != "" {
		if sc, err = scenario.Load(cfg.ScenarioPath); err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
	}

	opts := SessionOptions(cfg)
	opts.Width, opts.Height = sc.Map.Width, sc.Map.Height
	mgr := session.NewManager(opts)
	defer mgr.CloseAll()

	s := mgr.Create(DefaultSessionID)
	if err := api.SeedSession(db, s, sc.Items()); err != nil {
		log.Fatalf("Failed to seed default session: %v", err)
	}
	log.Printf("session %s ready: %d obstacles, %d targets", s.ID, len(sc.Obstacles), len(sc.Targets))

	if cfg.ScenarioPath != "" {
		watcher, err := scenario.NewWatcher(cfg.ScenarioPath)
		if err != nil {
			log.Printf("scenario watcher disabled: %v", err)
		} else {
			defer watcher.Close()
			go reloadScenarios(watcher, db, s)
		}
	}

	router := gin.Default()
	api.Register(router, db, mgr, weather.NewProvider(nil))

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(router)

	// 从配置单例读取端口 监听
	srv := &http.Server{
		Addr:    ":" + config.GetConfigValue("port").(string),
		Handler: handler,
	}
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// SessionOptions 把配置转换为会话参数
func SessionOptions(cfg *config.AppConfig) session.Options {
	opts := session.DefaultOptions()
	if cfg.CellSize > 0 {
		opts.CellSize = cfg.CellSize
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		opts.Width, opts.Height = cfg.Width, cfg.Height
	}
	if cfg.IntervalMs > 0 {
		opts.Interval = cfg.Interval()
	}
	if cfg.Roster > 0 {
		opts.RosterSize = cfg.Roster
	}
	if cfg.TrailWindow > 0 {
		opts.Params.TrailWindow = cfg.TrailWindow
	}
	opts.FrameDriven = cfg.FrameDriven
	return opts
}

func reloadScenarios(w *scenario.Watcher, db *sql.DB, s *session.Session) {
	for {
		select {
		case sc, ok := <-w.Events:
			if !ok {
				return
			}
			if err := api.SeedSession(db, s, sc.Items()); err != nil {
				log.Printf("scenario reload failed: %v", err)
				continue
			}
			log.Printf("scenario reloaded: %d obstacles, %d targets", len(sc.Obstacles), len(sc.Targets))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("scenario watcher: %v", err)
		}
	}
}

// EnsureFoldersExist 检查并创建必需的文件夹
func EnsureFoldersExist(folders ...string) {
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			err := os.MkdirAll(folder, 0755) // 使用0755权限以确保读写权限
			if err != nil {
				// 如果创建失败，则记录错误并可能退出程序
				log.Fatalf("Failed to create %s directory: %s", folder, err)
			}
			log.Printf("Created %s directory", folder)
		} else {
			// 文件夹已存在
			log.Printf("%s directory already exists", folder)
		}
	}
}
