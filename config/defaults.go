// =============================================================================
// 📦 SkillStream 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Redis:    DefaultRedisConfig(),
		Database: DefaultDatabaseConfig(),
		Engine:   DefaultEngineConfig(),
		Models:   DefaultModelsConfig(),
		Quota:    DefaultQuotaConfig(),
		Log:      DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:    8080,
		ReadTimeout: 30 * time.Second,
		// 流式端点写超时必须为 0，否则长流会被切断
		WriteTimeout:    0,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "skillstream:",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "skillstream",
		Password:        "",
		Name:            "skillstream",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:         4,
		PromoteInterval: 5 * time.Second,
		DefaultSkill:    "commonQnA",
	}
}

// DefaultModelsConfig 返回默认模型目录
func DefaultModelsConfig() ModelsConfig {
	return ModelsConfig{
		Default: "gpt-4o-mini",
		Entries: []ModelEntry{
			{Name: "gpt-4o", Provider: "openai", Tier: "t1", ContextWindow: 128000},
			{Name: "gpt-4o-mini", Provider: "openai", Tier: "t2", ContextWindow: 128000},
		},
	}
}

// DefaultQuotaConfig 返回默认配额配置
func DefaultQuotaConfig() QuotaConfig {
	return QuotaConfig{
		Enabled: false,
		PerMinute: map[string]int{
			"t1": 10,
			"t2": 60,
		},
		Burst: 5,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
