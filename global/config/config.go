package config

import (
	"context"
	"os"
	"strconv"
	"time"

	mgoSrv "roomify/service/mgo"
	redis "roomify/service/storage/redis"
	ids "roomify/tools/ids"
)

// BroadcastConversationID is the single reserved conversation every
// connection joins implicitly.
const BroadcastConversationID = "general"

var Global = AppConfig{
	NodeId:        1,
	Port:          3000,
	BroadcastRoom: BroadcastConversationID,
	MongoUri:      "mongodb://localhost:27017",
	MongoDatabase: "roomifyChat",
	RedisAddr:     "127.0.0.1:6379",
	RedisPassword: "",
	RedisDB:       0,
	JwtSecret:     "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=",
}

// ConfigAll applies env overrides and boots ids and mongo. Redis is booted
// separately by the caller because a missing redis is non-fatal.
func ConfigAll(ctx context.Context) error {
	loadEnv()
	ConfigIds()
	return ConfigMgo(ctx)
}

func loadEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			Global.Port = p
		}
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		Global.MongoUri = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		Global.MongoDatabase = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		Global.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		Global.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		Global.JwtSecret = v
	}
	if v := os.Getenv("NODE_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			Global.NodeId = n
		}
	}
}

func ConfigIds() {
	ids.SetNodeID(Global.NodeId)
}

func GetJwtSecret() []byte {
	return []byte(Global.JwtSecret)
}

func ConfigRedis() error {
	return redis.InitRedis(redis.Config{
		Addr:     Global.RedisAddr,
		Password: Global.RedisPassword,
		DB:       Global.RedisDB,
	})
}

func ConfigMgo(ctx context.Context) error {
	cfg := &mgoSrv.Config{
		Uri:         Global.MongoUri,
		Database:    Global.MongoDatabase,
		MaxPoolSize: 20,
	}
	mgoSrv.StartAsync(ctx, cfg)

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return mgoSrv.WaitReady(waitCtx)
}
