package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/colormatch-server/game"
	"go.uber.org/zap"
)

type roomRequest struct {
	RoomID string `uri:"id" binding:"required"`
}

// ListRooms returns a summary of every active room.
func (s *Server) ListRooms(c *gin.Context) {
	rooms, err := s.hub.ListRooms(c.Request.Context())

	if err != nil {
		s.logger.Error("cannot list rooms", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse(ErrorMessage500))
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (s *Server) GetRoom(c *gin.Context) {
	var data roomRequest

	if err := c.ShouldBindUri(&data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
		return
	}

	snapshot, err := s.hub.RoomInfo(c.Request.Context(), data.RoomID)

	if errors.Is(err, game.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		return
	}

	if err != nil {
		s.logger.Error("cannot get room", zap.String("room_id", data.RoomID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse(ErrorMessage500))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gameInfo": snapshot,
	})
}

// Health reports liveness along with the number of rooms and connections.
func (s *Server) Health(c *gin.Context) {
	stats, err := s.hub.Stats(c.Request.Context())

	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       stats.Rooms,
		"connections": stats.Connections,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
