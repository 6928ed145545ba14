// Package redis backs the gateway store with the shared redis instance used
// by every weplay service. Key layout follows the platform convention:
// weplay:connections, weplay:clients, weplay:nicks, weplay:log.
package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/store"
)

const (
	keyConnections = "weplay:connections"
	keyClients     = "weplay:clients"
	keyNicks       = "weplay:nicks"
	keyLog         = "weplay:log"

	writeQueueSize = 256
	writeTimeout   = 2 * time.Second
	readTimeout    = 2 * time.Second
)

// clientRecord is the JSON value stored per client in weplay:clients.
type clientRecord struct {
	Hash string `json:"hash"`
	IO   string `json:"io"`
}

// Store implements store.Store on redis. All writes funnel through a single
// worker goroutine so they execute in submission order without the caller
// waiting on the round trip.
type Store struct {
	rdb    *redis.Client
	logCap int
	log    zerolog.Logger

	writes chan func(context.Context)
	done   chan struct{}
}

// New connects to redis at the given URL and starts the write worker.
func New(url string, logCap int, logger *zerolog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	s := &Store{
		rdb:    redis.NewClient(opts),
		logCap: logCap,
		log:    logger.With().Str("component", "store").Logger(),
		writes: make(chan func(context.Context), writeQueueSize),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for op := range s.writes {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		op(ctx)
		cancel()
	}
}

// enqueue submits a write for ordered execution. A full queue drops the write
// rather than block the hot path.
func (s *Store) enqueue(op func(context.Context)) {
	select {
	case s.writes <- op:
	default:
		s.log.Warn().Msg("store write queue full, dropping write")
	}
}

func (s *Store) SetConnections(instance string, total int) {
	s.enqueue(func(ctx context.Context) {
		if err := s.rdb.HSet(ctx, keyConnections, instance, strconv.Itoa(total)).Err(); err != nil {
			s.log.Warn().Err(err).Msg("update connection count")
		}
	})
}

func (s *Store) DeleteConnections(instance string) {
	s.enqueue(func(ctx context.Context) {
		if err := s.rdb.HDel(ctx, keyConnections, instance).Err(); err != nil {
			s.log.Warn().Err(err).Msg("delete connection count")
		}
	})
}

func (s *Store) SetClientRoom(clientID, room, instance string) {
	record, err := json.Marshal(clientRecord{Hash: room, IO: instance})
	if err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID).Msg("marshal client record")
		return
	}
	s.enqueue(func(ctx context.Context) {
		if err := s.rdb.HSet(ctx, keyClients, clientID, record).Err(); err != nil {
			s.log.Warn().Err(err).Str("client_id", clientID).Msg("set client record")
		}
	})
}

func (s *Store) DeleteClient(clientID string) {
	s.enqueue(func(ctx context.Context) {
		if err := s.rdb.HDel(ctx, keyClients, clientID).Err(); err != nil {
			s.log.Warn().Err(err).Str("client_id", clientID).Msg("delete client record")
		}
	})
}

func (s *Store) SetNick(clientID, nick string) {
	s.enqueue(func(ctx context.Context) {
		if err := s.rdb.HSet(ctx, keyNicks, clientID, nick).Err(); err != nil {
			s.log.Warn().Err(err).Str("client_id", clientID).Msg("set nick")
		}
	})
}

func (s *Store) DeleteNick(clientID string) {
	s.enqueue(func(ctx context.Context) {
		if err := s.rdb.HDel(ctx, keyNicks, clientID).Err(); err != nil {
			s.log.Warn().Err(err).Str("client_id", clientID).Msg("delete nick")
		}
	})
}

func (s *Store) PushLog(entry []byte) {
	s.enqueue(func(ctx context.Context) {
		pipe := s.rdb.TxPipeline()
		pipe.LPush(ctx, keyLog, entry)
		pipe.LTrim(ctx, keyLog, 0, int64(s.logCap-1))
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn().Err(err).Msg("push log entry")
		}
	})
}

func (s *Store) FetchLog(ctx context.Context, limit int) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	values, err := s.rdb.LRange(ctx, keyLog, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([][]byte, 0, len(values))
	for _, v := range values {
		entries = append(entries, []byte(v))
	}
	return entries, nil
}

// Close drains pending writes and closes the connection.
func (s *Store) Close() error {
	close(s.writes)
	<-s.done
	return s.rdb.Close()
}

var _ store.Store = (*Store)(nil)
