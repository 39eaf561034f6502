package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	config "roomify/global/config"
	"roomify/logger"
	"roomify/module/chat/model"
	api "roomify/module/chat/service"
	"roomify/service/chat"
	"roomify/service/chat/handlers"
	"roomify/service/storage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.ConfigAll(ctx); err != nil {
		logger.Errorf("boot failed: %v", err)
		return
	}

	// the reserved broadcast conversation must exist before any send
	var conversations model.Conversation
	if err := conversations.EnsureBroadcast(ctx, config.Global.BroadcastRoom); err != nil {
		logger.Errorf("broadcast conversation init failed: %v", err)
		return
	}

	var dedup storage.SendDeduper
	if err := config.ConfigRedis(); err == nil {
		dedup = storage.NewRedisDeduper()
	} else {
		// dedup degrades to in-memory; acceptable for a single process
		logger.Warnf("redis unavailable, using in-memory send dedup: %v", err)
		dedup = storage.NewMemDeduper(0)
	}

	rt := chat.NewServer(chat.ServerOptions{
		JwtSecret:     config.GetJwtSecret(),
		BroadcastRoom: config.Global.BroadcastRoom,
		Store:         chat.NewMongoStore(),
		Dedup:         dedup,
	})
	handlers.RegisterAll(rt)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", rt.HandleWS)
	api.NewServer(rt).Register(r, config.GetJwtSecret())

	addr := fmt.Sprintf(":%d", config.Global.Port)
	logger.Infof("listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Errorf("server stopped: %v", err)
	}
}
