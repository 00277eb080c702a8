package handlers

import "github.com/gin-gonic/gin"

type Router struct {
	handler *Handler
}

func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

func (r *Router) RegisterRoutes(engine *gin.Engine, idempotency gin.HandlerFunc) {
	engine.GET("/healthz", r.handler.health)

	api := engine.Group("/api")
	vnfs := api.Group("/vnfs")
	vnfs.POST("/:id/instantiate", idempotency, r.handler.instantiateVNF)
	vnfs.POST("/:id/terminate", idempotency, r.handler.terminateVNF)
	vnfs.GET("/:id", r.handler.getVNF)

	api.GET("/operations/:id", r.handler.getOperation)
}
