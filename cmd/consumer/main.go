package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/rental-checkout/internal/config"
	"github.com/example/rental-checkout/internal/events"
	"github.com/example/rental-checkout/internal/logging"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total checkout events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger("rental-checkout-consumer", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var e events.Event
		if err := json.Unmarshal(m.Value, &e); err != nil || projectionKey(e) == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "offset", m.Offset, "error", err)
			continue
		}

		if err := updateRedisWithRetry(ctx, radapter, e, cfg.ProjectionTTL, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			logger.Error("redis update failed", "type", e.Type, "session", e.SessionID, "booking_id", e.BookingID, "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisUpdater defines the small subset of redis operations we need for tests and production.
type RedisUpdater interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := r.c.HSet(ctx, key, values).Result()
	return err
}

func (r *redisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.c.Expire(ctx, key, ttl).Err()
}

// projectionKey is the hash support tooling looks a booking attempt up by.
// Events from before a booking exists are filed under the tab session.
func projectionKey(e events.Event) string {
	switch {
	case e.BookingID != "":
		return "checkout:booking:" + e.BookingID
	case e.SessionID != "":
		return "checkout:session:" + e.SessionID
	default:
		return ""
	}
}

func projectionFields(e events.Event) map[string]interface{} {
	f := map[string]interface{}{
		"last_event": string(e.Type),
		"updated_at": e.At.UTC().Format(time.RFC3339Nano),
	}
	if e.SessionID != "" {
		f["session_id"] = e.SessionID
	}
	if e.BookingID != "" {
		f["booking_id"] = e.BookingID
	}
	if e.CalculationID != "" {
		f["calculation_id"] = e.CalculationID
	}
	if e.Gateway != "" {
		f["gateway"] = e.Gateway
	}
	if e.State != "" {
		f["state"] = e.State
	}
	if e.Amount != 0 {
		f["amount"] = strconv.FormatFloat(e.Amount, 'f', -1, 64)
	}
	if e.Message != "" {
		f["message"] = e.Message
	}
	return f
}

// updateRedisWithRetry writes the event's projection with retry/backoff.
func updateRedisWithRetry(ctx context.Context, rc RedisUpdater, e events.Event, ttl time.Duration, attempts int, delay time.Duration) error {
	key := projectionKey(e)
	if key == "" {
		return fmt.Errorf("event %s has no session or booking id", e.Type)
	}
	fields := projectionFields(e)
	var err error
	for i := 0; i < attempts; i++ {
		if err = rc.HSet(ctx, key, fields); err == nil {
			if err = rc.Expire(ctx, key, ttl); err == nil {
				return nil
			}
		}
		if i == attempts-1 {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}
