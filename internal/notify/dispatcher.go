package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FanoutResult 一次 fan-out 的计数结果
type FanoutResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`

	// Gone 返回 404/410 的 endpoint（已计入 Failed）
	Gone []string `json:"-"`
}

// Dispatcher 并发投递，单个 endpoint 失败只计数不返回错误
type Dispatcher struct {
	deliverer   Deliverer
	logger      *zap.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
	concurrency int
}

// NewDispatcher timeout 为单次投递超时，concurrency 为并发上限
func NewDispatcher(deliverer Deliverer, logger *zap.Logger, m *metrics.Metrics, timeout time.Duration, concurrency int) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Dispatcher{
		deliverer:   deliverer,
		logger:      logger,
		metrics:     m,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Fanout 投递到所有订阅
func (d *Dispatcher) Fanout(ctx context.Context, subs []*domain.PushSubscription, n Notification) FanoutResult {
	res := FanoutResult{Attempted: len(subs)}
	if len(subs) == 0 {
		return res
	}

	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("Failed to encode notification", zap.Error(err))
		res.Failed = len(subs)
		return res
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.concurrency)

	for _, sub := range subs {
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			err := d.deliverer.Deliver(dctx, sub, payload)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Delivered++
				d.metrics.Delivery("delivered")
			case errors.Is(err, ErrEndpointGone):
				res.Failed++
				res.Gone = append(res.Gone, sub.Endpoint)
				d.metrics.Delivery("gone")
				d.logger.Info("Push endpoint gone", zap.String("endpoint", sub.Endpoint))
			default:
				res.Failed++
				d.metrics.Delivery("failed")
				d.logger.Warn("Push delivery failed",
					zap.String("endpoint", sub.Endpoint),
					zap.String("family_id", sub.FamilyID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return res
}
