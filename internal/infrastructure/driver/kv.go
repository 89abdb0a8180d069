package driver

import (
	"errors"
	"time"
)

// ErrKeyNotFound missing key lookup
var ErrKeyNotFound = errors.New("key does not exist")

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	SetEX(key string, value string, expiration time.Duration) error
	Get(key string) (string, error)
	Exists(key string) (bool, error)
	Del(key string) error
	Ping() error
}
