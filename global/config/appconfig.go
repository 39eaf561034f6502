package config

type AppConfig struct {
	NodeId        int64  // node id, feeds the snowflake generator
	Port          int    // http listen port
	BroadcastRoom string // reserved broadcast conversation id, auto-joined
	MongoUri      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JwtSecret     string
}
