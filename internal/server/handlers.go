package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/younghedong/svcboot/internal/store"
)

// maxSnapshotLimit 单次查询允许返回的最大快照数量
const maxSnapshotLimit = 500

// handleHealth 健康检查
func (s *Server) handleHealth(c *gin.Context) {
	service := s.provider.Service()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": service.Name,
		"version": service.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo 返回完整的服务自描述文档
func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.Document())
}

// handleProcess 返回当前时刻的进程快照
func (s *Server) handleProcess(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.Process().Snapshot())
}

// handleSnapshots 返回最近持久化的快照，按采集时间倒序
func (s *Server) handleSnapshots(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store disabled"})
		return
	}

	limit := store.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if parsed > maxSnapshotLimit {
			parsed = maxSnapshotLimit
		}
		limit = parsed
	}

	snapshots, err := s.repo.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to query snapshots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query snapshots"})
		return
	}
	if snapshots == nil {
		snapshots = []store.Snapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(snapshots),
		"snapshots": snapshots,
	})
}
