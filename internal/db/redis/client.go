// Package redis serves attribute values stored as one Redis hash per entity
// ("<table>:<id>" with one field per column) and backs the vocabulary cache.
package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/simsearch/internal/db"
)

var (
	_ db.Connector = (*Store)(nil)
	_ db.KVStore   = (*Store)(nil)
)

const (
	clientName         = "simsearch"
	defaultDialTimeout = 5 * time.Second
	readyBackoffStart  = 50 * time.Millisecond
	readyBackoffMax    = time.Second
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// DialTimeout defaults to 5s.
	DialTimeout time.Duration
}

// Store reads entity hashes and cache entries through one rueidis client.
type Store struct {
	client rueidis.Client
}

// NewStore connects to Redis. Client-side caching stays off: entity hashes
// are read once per query and cached by the finder.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, &db.Error{Op: db.OpConnect, Err: errors.New("addrs is required")}
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   clientName,
		DisableCache: true,
		Dialer:       net.Dialer{Timeout: dial},
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// WaitForReady pings with exponential backoff until Redis answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := readyBackoffStart
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return &db.Error{Op: db.OpPing, Err: errors.Join(ctx.Err(), err)}
		case <-time.After(wait):
		}
		wait = min(2*wait, readyBackoffMax)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
