package redis

import (
	goredis "github.com/redis/go-redis/v9"
)

// ParseAddr accepts either host:port or a redis:// URL.
func ParseAddr(addr string) ClientConfig {
	opts, err := goredis.ParseURL(addr)
	if err != nil {
		return ClientConfig{Addr: addr}
	}
	return ClientConfig{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}
