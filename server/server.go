// server\server.go
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/studieren/dualstore/aggregate"
	"github.com/studieren/dualstore/config"
	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/validator"
)

// CompareCacheNamespace project 重建投影后需要清空的缓存
const CompareCacheNamespace = "compare"

// Server 通过 HTTP 暴露两种聚合和一致性比较
type Server struct {
	tool       *gormtool.Tool
	relational aggregate.Engine
	document   aggregate.Engine
	window     aggregate.Window
	opts       validator.Options
}

// New window 为请求未给出 start/end 时使用的默认窗口
func New(tool *gormtool.Tool, relational, document aggregate.Engine, window aggregate.Window, opts validator.Options) *Server {
	return &Server{
		tool:       tool,
		relational: relational,
		document:   document,
		window:     window,
		opts:       opts,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.Default())

	r.GET("/aggregates/relational", s.aggregateHandler(s.relational))
	r.GET("/aggregates/document", s.aggregateHandler(s.document))
	r.GET("/compare", s.compare)
	r.GET("/metrics", s.tool.GetMetrics)
	return r
}

// windowFrom 读取 start / end 查询参数，缺省时使用配置的窗口
func (s *Server) windowFrom(c *gin.Context) (aggregate.Window, error) {
	start, end := s.window.Start, s.window.End
	if v := c.Query("start"); v != "" {
		t, err := config.ParseTime(v)
		if err != nil {
			return aggregate.Window{}, err
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := config.ParseTime(v)
		if err != nil {
			return aggregate.Window{}, err
		}
		end = t
	}
	return aggregate.NewWindow(start, end)
}

func (s *Server) aggregateHandler(engine aggregate.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if engine == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"msg": "存储未配置"})
			return
		}
		w, err := s.windowFrom(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
			return
		}

		result, err := engine.Aggregate(c.Request.Context(), w)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "聚合成功",
			"data":    result,
		})
	}
}

// compareCacheKey 窗口边界保留到纳秒
func compareCacheKey(w aggregate.Window, opts validator.Options) string {
	mode := "best"
	if opts.ComparePosts {
		mode = "posts"
	}
	return gormtool.CacheKey(CompareCacheNamespace, mode,
		w.Start.UTC().Format(time.RFC3339Nano), w.End.UTC().Format(time.RFC3339Nano))
}

// compare 比较结果按窗口缓存在 Redis 中
func (s *Server) compare(c *gin.Context) {
	if s.relational == nil || s.document == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"msg": "存储未配置"})
		return
	}
	w, err := s.windowFrom(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	ctx := c.Request.Context()
	key := compareCacheKey(w, s.opts)

	var report validator.Report
	if s.tool.GetFromCache(ctx, key, &report) {
		c.Header("X-Cache", "HIT")
	} else {
		report, err = validator.Run(ctx, s.relational, s.document, w, s.opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
			return
		}
		if err := s.tool.SetToCache(ctx, key, report); err != nil {
			s.tool.Logger.Warn(ctx, "缓存写入失败", map[string]interface{}{"key": key, "error": err.Error()})
		}
		c.Header("X-Cache", "MISS")
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "比较完成",
		"data":    report,
	})
}
