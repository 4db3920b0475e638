package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddr(t *testing.T) {
	assert.Equal(t, ClientConfig{Addr: "localhost:6379"}, ParseAddr("localhost:6379"))
	assert.Equal(t, ClientConfig{Addr: "cache:6380", Password: "secret", DB: 2}, ParseAddr("redis://:secret@cache:6380/2"))
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "video:status:abc", StatusKey("abc"))
}
