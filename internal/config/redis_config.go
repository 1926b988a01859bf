package config

type Redis struct{}

var _ RedisConfig = Redis{}

func (Redis) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Redis) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Redis) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Redis) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "gateway:")
}
