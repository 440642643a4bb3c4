package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hoshinonyaruko/crumbway/ant"
	"github.com/hoshinonyaruko/crumbway/render"
	"github.com/hoshinonyaruko/crumbway/scenario"
	"github.com/hoshinonyaruko/crumbway/session"
	"github.com/hoshinonyaruko/crumbway/sqlite"
	"github.com/hoshinonyaruko/crumbway/structs"
	"github.com/hoshinonyaruko/crumbway/weather"
)

// maxRenderWidth 渲染图片的最大宽度
const maxRenderWidth = 4096

// Register 挂载全部接口到 /api 下
func Register(router gin.IRouter, db *sql.DB, mgr *session.Manager, wp *weather.Provider) {
	g := router.Group("/api")
	g.GET("/weather", WeatherHandler(wp))

	g.POST("/sessions", CreateSession(db, mgr))
	g.GET("/sessions", ListSessions(mgr))

	s := g.Group("/sessions/:id", withSession(mgr))
	s.GET("", GetSession())
	s.DELETE("", DeleteSession(db, mgr))
	s.POST("/start", StartSession())
	s.POST("/stop", StopSession())
	s.POST("/reset", ResetSession())
	s.PUT("/mode", SetMode())
	s.PUT("/placing", SetPlacing())
	s.POST("/click", Click(db))
	s.POST("/navigate", Navigate())
	s.GET("/obstacles", ListObstacles())
	s.POST("/obstacles", AddObstacle(db))
	s.GET("/targets", ListTargets())
	s.POST("/targets", AddTarget(db))
	s.DELETE("/items/:itemID", RemoveItem(db))
	s.DELETE("/items", ClearItems(db))
	s.GET("/search", Search())
	s.GET("/route", Route())
	s.GET("/render.png", RenderFrame())
	s.GET("/ws", Stream())
}

func withSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := mgr.Get(c.Param("id"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Set("session", s)
		c.Next()
	}
}

func current(c *gin.Context) *session.Session {
	return c.MustGet("session").(*session.Session)
}

// bindOptionalJSON 允许空请求体
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// SeedSession 把物品集合写入存储并同步到会话
func SeedSession(db *sql.DB, s *session.Session, set structs.ItemSet) error {
	opts := s.Options()
	if err := sqlite.CreateSession(db, s.ID, opts.Width, opts.Height); err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	if err := sqlite.ReplaceItems(db, s.ID, set); err != nil {
		return fmt.Errorf("seed session %s: %w", s.ID, err)
	}
	return syncItems(db, s)
}

// syncItems 存储是物品的唯一来源，每次修改后重新加载
func syncItems(db *sql.DB, s *session.Session) error {
	set, err := sqlite.LoadItems(db, s.ID)
	if err != nil {
		return err
	}
	s.SwapItems(set)
	return nil
}

func CreateSession(db *sql.DB, mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ID            string `json:"id"`
			DefaultLayout bool   `json:"default_layout"`
		}
		if err := bindOptionalJSON(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if _, exists := mgr.Get(req.ID); exists {
			c.JSON(http.StatusConflict, gin.H{"error": "Session already exists"})
			return
		}
		s := mgr.Create(req.ID)
		var set structs.ItemSet
		if req.DefaultLayout {
			set = scenario.Default().Items()
		}
		if err := SeedSession(db, s, set); err != nil {
			fmt.Printf("err SeedSession :%v\n", err)
			mgr.Delete(s.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to create session"})
			return
		}
		c.JSON(http.StatusCreated, s.Snapshot())
	}
}

func ListSessions(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": mgr.IDs()})
	}
}

func GetSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, current(c).Snapshot())
	}
}

func DeleteSession(db *sql.DB, mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		mgr.Delete(s.ID)
		if err := sqlite.DeleteSession(db, s.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
	}
}

func StartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		started := s.Start()
		c.JSON(http.StatusOK, gin.H{"started": started, "running": s.Running()})
	}
}

func StopSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		s.Stop()
		c.JSON(http.StatusOK, gin.H{"running": s.Running()})
	}
}

func ResetSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		s.Reset()
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

func SetMode() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		mode, err := ant.ParseTransitMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		current(c).SetTransitMode(mode)
		c.JSON(http.StatusOK, gin.H{"mode": mode})
	}
}

func SetPlacing() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Kind string `json:"kind"`
		}
		if err := bindOptionalJSON(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := current(c).SetPlacing(req.Kind); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"placing": req.Kind})
	}
}

type pointRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (p pointRequest) point() (structs.Point, bool) {
	if p.X == nil || p.Y == nil {
		return structs.Point{}, false
	}
	pt := structs.Point{X: *p.X, Y: *p.Y}
	return pt, pt.Finite()
}

func Click(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pointRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		p, ok := req.point()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid x, y"})
			return
		}
		s := current(c)
		res, err := s.Click(p)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		switch {
		case res.Target != nil:
			err = sqlite.AddTarget(db, s.ID, *res.Target)
		case res.Obstacle != nil:
			err = sqlite.AddObstacle(db, s.ID, *res.Obstacle)
		}
		if err == nil && res.Action != "navigate" {
			err = syncItems(db, s)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store item"})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func Navigate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AgentID  string   `json:"agent_id"`
			TargetID string   `json:"target_id"`
			X        *float64 `json:"x"`
			Y        *float64 `json:"y"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		s := current(c)
		if req.AgentID == "" {
			req.AgentID = s.SelectedAgent()
		}

		var (
			path []structs.Point
			err  error
		)
		if req.TargetID != "" {
			path, err = s.NavigateToTarget(req.AgentID, req.TargetID)
		} else {
			p, ok := pointRequest{X: req.X, Y: req.Y}.point()
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Need target_id or finite x, y"})
				return
			}
			path, err = s.Navigate(req.AgentID, p)
		}
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		eta, _ := s.RouteTime(req.AgentID)
		c.JSON(http.StatusOK, gin.H{"agent_id": req.AgentID, "path": path, "route_time": eta})
	}
}

func ListObstacles() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"obstacles": current(c).Items().Obstacles})
	}
}

func ListTargets() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"targets": current(c).Items().Targets})
	}
}

func AddObstacle(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var o structs.Obstacle
		if err := c.ShouldBindJSON(&o); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if !o.Finite() || o.Width <= 0 || o.Height <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Obstacle needs a finite position and positive size"})
			return
		}
		if o.Kind == "" {
			o.Kind = "furniture"
		}
		if !session.ObstacleKind(o.Kind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown obstacle kind '%s'", o.Kind)})
			return
		}
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		s := current(c)
		if err := sqlite.AddObstacle(db, s.ID, o); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store obstacle"})
			return
		}
		if err := syncItems(db, s); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload items"})
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

func AddTarget(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var t structs.Target
		if err := c.ShouldBindJSON(&t); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if !t.Pos().Finite() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Target needs a finite position"})
			return
		}
		if t.Kind == "" {
			t.Kind = "crumb"
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		s := current(c)
		if err := sqlite.AddTarget(db, s.ID, t); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store target"})
			return
		}
		if err := syncItems(db, s); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload items"})
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func RemoveItem(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		removed, err := sqlite.RemoveItem(db, s.ID, c.Param("itemID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
			return
		}
		if !removed {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		if err := syncItems(db, s); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload items"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item removed successfully"})
	}
}

func ClearItems(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		if err := sqlite.ClearItems(db, s.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear items"})
			return
		}
		// 清空同时停止模拟
		s.ClearItems()
		if err := syncItems(db, s); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload items"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Items cleared", "running": s.Running()})
	}
}

func Search() gin.HandlerFunc {
	return func(c *gin.Context) {
		results := current(c).SearchTargets(c.Query("q"))
		if results == nil {
			results = []structs.Target{}
		}
		c.JSON(http.StatusOK, gin.H{"targets": results})
	}
}

func Route() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		agentID := c.DefaultQuery("agent", s.SelectedAgent())
		eta, err := s.RouteTime(agentID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "mode": s.TransitMode(), "route_time": eta})
	}
}

func RenderFrame() gin.HandlerFunc {
	return func(c *gin.Context) {
		width, err := strconv.Atoi(c.DefaultQuery("width", "0"))
		if err != nil || width < 0 || width > maxRenderWidth {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid width"})
			return
		}
		opts := render.DefaultOptions()
		if c.Query("labels") == "false" {
			opts.Labels = false
		}
		img := render.Scale(render.Frame(current(c).Snapshot(), opts), width)
		c.Header("Content-Type", "image/png")
		c.Status(http.StatusOK)
		if err := render.EncodePNG(c.Writer, img); err != nil {
			fmt.Printf("err EncodePNG :%v\n", err)
		}
	}
}

func WeatherHandler(wp *weather.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		latStr, lonStr := strings.TrimSpace(c.Query("lat")), strings.TrimSpace(c.Query("lon"))
		if latStr == "" || lonStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Latitude and longitude are required"})
			return
		}
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lon, err2 := strconv.ParseFloat(lonStr, 64)
		if err1 != nil || err2 != nil || math.IsNaN(lat) || math.IsNaN(lon) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Latitude and longitude must be numbers"})
			return
		}
		report := wp.Mock(lat, lon)
		c.JSON(http.StatusOK, gin.H{
			"temperature": report.Temperature,
			"humidity":    report.Humidity,
			"windSpeed":   report.WindSpeed,
			"description": report.Description,
			"main":        report.Main,
			"ant":         weather.Advisory(report.Humidity),
		})
	}
}
