package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	httputil "innkeep/pkg/http"
	"innkeep/pkg/logger"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Locks    string `json:"locks,omitempty"`
	Queue    int    `json:"queue_pending,omitempty"`
}

// QueueDepthFunc reports how many commands are waiting in the queue.
type QueueDepthFunc func() int

type HealthHandler struct {
	mongoClient *mongo.Client
	redisClient *redis.Client
	queueDepth  QueueDepthFunc
	log         *logger.Logger
}

// NewHealthHandler accepts nil clients; the corresponding check is skipped,
// which keeps the memory lock backend deployable without Redis.
func NewHealthHandler(mongoClient *mongo.Client, redisClient *redis.Client, queueDepth QueueDepthFunc, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		mongoClient: mongoClient,
		redisClient: redisClient,
		queueDepth:  queueDepth,
		log:         log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready"}
	if h.queueDepth != nil {
		resp.Queue = h.queueDepth()
	}

	if h.mongoClient != nil {
		if err := h.mongoClient.Ping(ctx, nil); err != nil {
			h.log.Error("Database health check failed", "error", err, "path", r.URL.Path)
			resp.Status = "unavailable"
			resp.Database = "error"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			h.log.Error("Lock store health check failed", "error", err, "path", r.URL.Path)
			resp.Status = "unavailable"
			resp.Locks = "error"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Locks = "ok"
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
