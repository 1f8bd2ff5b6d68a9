// Package dexws implements a PriceFeed over a chain node WebSocket.
// It subscribes to pair Sync logs via eth_subscribe and decodes them
// into price updates.
package dexws

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dex-arb-bot/business/feeds/app"
	"github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/logger"
	"github.com/fd1az/dex-arb-bot/internal/wsconn"
)

// Ensure interface compliance
var _ app.PriceFeed = (*Feed)(nil)

const (
	tracerName = "dexws"
	meterName  = "dexws"

	// keccak256("Sync(uint112,uint112)")
	syncTopic = "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1"
)

// Config holds feed parameters.
type Config struct {
	Chain     domain.ChainID
	Exchange  domain.ExchangeID
	NodeWSURL string

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int
	PingInterval   time.Duration
	ConnectTimeout time.Duration
}

// feedMetrics holds OTEL metric instruments.
type feedMetrics struct {
	updatesDecoded metric.Int64Counter
	decodeErrors   metric.Int64Counter
	unknownPools   metric.Int64Counter
	subscriptions  metric.Int64UpDownCounter
}

// jsonRPCRequest is the outbound JSON-RPC envelope.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcEnvelope covers responses and subscription notifications.
type rpcEnvelope struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      *uint64            `json:"id"`
	Result  json.RawMessage    `json:"result"`
	Error   *rpcError          `json:"error"`
	Method  string             `json:"method"`
	Params  *subscriptionEvent `json:"params"`
}

type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type subscriptionEvent struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// syncLog is the log entry carried in a subscription notification.
type syncLog struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        string         `json:"data"`
	BlockNumber string         `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
}

// Feed is a DEX price feed over a node WebSocket.
type Feed struct {
	config Config
	logger logger.LoggerInterface

	conn *wsconn.Client

	pools     []domain.PoolSubscription
	poolIndex map[common.Address]domain.PoolSubscription

	deliver    app.UpdateHandler
	handlersMu sync.RWMutex

	subIDs    map[string]struct{}
	subsMu    sync.Mutex
	nextID    atomic.Uint64
	firstDial atomic.Bool

	tracer   trace.Tracer
	metrics  *feedMetrics
	feedAttr attribute.Set
}

// NewFeed creates a feed for the given pools. It does not dial.
func NewFeed(cfg Config, pools []domain.PoolSubscription, log logger.LoggerInterface) (*Feed, error) {
	if len(pools) == 0 {
		return nil, apperror.New(apperror.CodeValidationError,
			apperror.WithMessage("dexws: at least one pool is required"))
	}

	f := &Feed{
		config:    cfg,
		logger:    log,
		pools:     pools,
		poolIndex: make(map[common.Address]domain.PoolSubscription, len(pools)),
		subIDs:    make(map[string]struct{}),
		tracer:    otel.Tracer(tracerName),
	}
	for _, p := range pools {
		f.poolIndex[p.Pool] = p
	}

	id := f.ID()
	f.feedAttr = attribute.NewSet(attribute.String("feed", id))

	connCfg := wsconn.DefaultConfig(cfg.NodeWSURL, id)
	if cfg.InitialBackoff > 0 {
		connCfg.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		connCfg.MaxBackoff = cfg.MaxBackoff
	}
	if cfg.PingInterval > 0 {
		connCfg.PingInterval = cfg.PingInterval
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}
	connCfg.MaxReconnects = cfg.MaxReconnects

	conn, err := wsconn.New(connCfg, log)
	if err != nil {
		return nil, err
	}
	f.conn = conn

	conn.OnMessage(f.handleMessage)
	conn.OnConnect(f.replaySubscriptions)

	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return f, nil
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.updatesDecoded, err = meter.Int64Counter(
		"dex_updates_decoded_total",
		metric.WithDescription("Sync events decoded into price updates"),
	)
	if err != nil {
		return err
	}

	f.metrics.decodeErrors, err = meter.Int64Counter(
		"dex_decode_errors_total",
		metric.WithDescription("Messages that failed to decode"),
	)
	if err != nil {
		return err
	}

	f.metrics.unknownPools, err = meter.Int64Counter(
		"dex_unknown_pool_logs_total",
		metric.WithDescription("Logs received for unsubscribed pools"),
	)
	if err != nil {
		return err
	}

	f.metrics.subscriptions, err = meter.Int64UpDownCounter(
		"dex_active_subscriptions",
		metric.WithDescription("Active eth_subscribe subscriptions"),
	)
	return err
}

// ID returns the feed identifier, e.g. "bsc-pancakeswap".
func (f *Feed) ID() string {
	return fmt.Sprintf("%s-%s", chainName(f.config.Chain), f.config.Exchange)
}

// Pools returns the watched pool set.
func (f *Feed) Pools() []domain.PoolSubscription {
	out := make([]domain.PoolSubscription, len(f.pools))
	copy(out, f.pools)
	return out
}

// Connect dials the node, retrying per the reconnect policy.
func (f *Feed) Connect(ctx context.Context) error {
	ctx, span := f.tracer.Start(ctx, "dexws.connect",
		trace.WithAttributes(
			attribute.String("feed", f.ID()),
			attribute.String("url", f.config.NodeWSURL),
		))
	defer span.End()

	if err := f.conn.ConnectWithRetry(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Disconnect closes the transport and clears subscription state.
func (f *Feed) Disconnect() error {
	err := f.conn.Close()

	f.subsMu.Lock()
	for range f.subIDs {
		f.metrics.subscriptions.Add(context.Background(), -1,
			metric.WithAttributeSet(f.feedAttr))
	}
	f.subIDs = make(map[string]struct{})
	f.subsMu.Unlock()

	return err
}

// Status maps the transport status onto the feed lifecycle.
func (f *Feed) Status() domain.FeedStatus {
	st := f.conn.Status()
	out := domain.FeedStatus{Attempt: st.Attempt, Reason: st.Reason}

	switch st.State {
	case wsconn.StateConnecting:
		out.State = domain.StateConnecting
	case wsconn.StateConnected:
		out.State = domain.StateConnected
	case wsconn.StateReconnecting:
		out.State = domain.StateReconnecting
	case wsconn.StateFailed:
		out.State = domain.StateFailed
	default:
		out.State = domain.StateDisconnected
	}
	return out
}

// Subscribe registers the pool filter with the node and routes decoded
// updates to deliver.
func (f *Feed) Subscribe(ctx context.Context, deliver app.UpdateHandler) error {
	if !f.conn.IsConnected() {
		return apperror.New(apperror.CodeFeedNotConnected,
			apperror.WithContext("feed", f.ID()))
	}

	f.handlersMu.Lock()
	f.deliver = deliver
	f.handlersMu.Unlock()

	if err := f.sendSubscription(ctx); err != nil {
		return err
	}

	f.logger.Info(ctx, "subscribed to pool sync events",
		"feed", f.ID(), "pools", len(f.pools))
	return nil
}

// sendSubscription issues one eth_subscribe covering every pool.
func (f *Feed) sendSubscription(ctx context.Context) error {
	addresses := make([]string, len(f.pools))
	for i, p := range f.pools {
		addresses[i] = strings.ToLower(p.Pool.Hex())
	}

	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      f.nextID.Add(1),
		Method:  "eth_subscribe",
		Params: []any{
			"logs",
			map[string]any{
				"address": addresses,
				"topics":  []string{syncTopic},
			},
		},
	}

	if err := f.conn.SendJSON(ctx, req); err != nil {
		return apperror.New(apperror.CodeSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContext("feed", f.ID()))
	}
	return nil
}

// replaySubscriptions re-issues the pool filter after a reconnect. The
// node forgets subscriptions when the connection drops. The initial dial
// is excluded: Subscribe owns the first send, and racing it here would
// register the filter twice and double every delivery.
func (f *Feed) replaySubscriptions(ctx context.Context) {
	if f.firstDial.CompareAndSwap(false, true) {
		return
	}

	f.handlersMu.RLock()
	subscribed := f.deliver != nil
	f.handlersMu.RUnlock()
	if !subscribed {
		return
	}

	f.subsMu.Lock()
	for range f.subIDs {
		f.metrics.subscriptions.Add(ctx, -1, metric.WithAttributeSet(f.feedAttr))
	}
	f.subIDs = make(map[string]struct{})
	f.subsMu.Unlock()

	if err := f.sendSubscription(ctx); err != nil {
		f.logger.Error(ctx, "failed to replay subscription",
			"feed", f.ID(), "error", err)
	}
}

// handleMessage decodes one inbound frame.
func (f *Feed) handleMessage(ctx context.Context, data []byte) {
	var env rpcEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.metrics.decodeErrors.Add(ctx, 1, metric.WithAttributeSet(f.feedAttr))
		f.logger.Warn(ctx, "malformed frame", "feed", f.ID(), "error", err)
		return
	}

	if env.Error != nil {
		f.logger.Error(ctx, "node returned error",
			"feed", f.ID(), "code", env.Error.Code, "message", env.Error.Message)
		return
	}

	// Subscription confirmation: result is the subscription id string.
	if env.ID != nil && len(env.Result) > 0 {
		var subID string
		if err := json.Unmarshal(env.Result, &subID); err == nil && subID != "" {
			f.subsMu.Lock()
			f.subIDs[subID] = struct{}{}
			f.subsMu.Unlock()
			f.metrics.subscriptions.Add(ctx, 1, metric.WithAttributeSet(f.feedAttr))
			f.logger.Debug(ctx, "subscription confirmed",
				"feed", f.ID(), "subscription", subID)
		}
		return
	}

	if env.Method == "eth_subscription" && env.Params != nil {
		f.handleSyncEvent(ctx, env.Params)
	}
}

// handleSyncEvent turns one Sync log into a price update.
func (f *Feed) handleSyncEvent(ctx context.Context, event *subscriptionEvent) {
	var log syncLog
	if err := json.Unmarshal(event.Result, &log); err != nil {
		f.metrics.decodeErrors.Add(ctx, 1, metric.WithAttributeSet(f.feedAttr))
		f.logger.Warn(ctx, "malformed sync log", "feed", f.ID(), "error", err)
		return
	}

	pool, ok := f.poolIndex[log.Address]
	if !ok {
		f.metrics.unknownPools.Add(ctx, 1, metric.WithAttributeSet(f.feedAttr))
		f.logger.Debug(ctx, "log for unknown pool",
			"feed", f.ID(), "address", log.Address.Hex())
		return
	}

	reserve0, reserve1, err := parseSyncData(log.Data)
	if err != nil {
		f.metrics.decodeErrors.Add(ctx, 1, metric.WithAttributeSet(f.feedAttr))
		f.logger.Warn(ctx, "failed to parse sync data",
			"feed", f.ID(), "pool", log.Address.Hex(), "error", err)
		return
	}

	update := domain.PriceUpdate{
		Timestamp: time.Now(),
		Chain:     f.config.Chain,
		Block:     parseBlockNumber(log.BlockNumber),
		Exchange:  pool.Exchange,
		Pool:      pool.Pool,
		Token0:    pool.Token0,
		Token1:    pool.Token1,
		Reserve0:  reserve0,
		Reserve1:  reserve1,
		Price:     domain.PriceFromReserves(reserve0, reserve1),
	}

	f.metrics.updatesDecoded.Add(ctx, 1, metric.WithAttributeSet(f.feedAttr))

	f.handlersMu.RLock()
	deliver := f.deliver
	f.handlersMu.RUnlock()
	if deliver == nil {
		return
	}

	if err := deliver(ctx, update); err != nil {
		// Delivery failure is terminal: the consumer is gone, so
		// reconnecting and decoding more logs would not help.
		f.logger.Error(ctx, "update delivery failed, closing feed",
			"feed", f.ID(), "pool", pool.Pool.Hex(), "error", err)
		_ = f.conn.Close()
	}
}

// parseSyncData extracts the two uint112 reserves from the ABI-encoded
// log data: two 32-byte big-endian words.
func parseSyncData(data string) (*uint256.Int, *uint256.Int, error) {
	hexData := strings.TrimPrefix(data, "0x")
	if len(hexData) < 128 {
		return nil, nil, apperror.New(apperror.CodeEventDecodeFailed,
			apperror.WithMessage("sync data too short"),
			apperror.WithContext("length", len(hexData)))
	}

	raw0, err := hex.DecodeString(hexData[0:64])
	if err != nil {
		return nil, nil, apperror.New(apperror.CodeEventDecodeFailed,
			apperror.WithCause(err))
	}
	raw1, err := hex.DecodeString(hexData[64:128])
	if err != nil {
		return nil, nil, apperror.New(apperror.CodeEventDecodeFailed,
			apperror.WithCause(err))
	}

	return new(uint256.Int).SetBytes(raw0), new(uint256.Int).SetBytes(raw1), nil
}

// parseBlockNumber decodes the hex quantity from a log entry. Malformed
// values map to zero, the rest of the update is still usable.
func parseBlockNumber(s string) uint64 {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0
	}
	return n
}

func chainName(c domain.ChainID) string {
	switch c {
	case domain.ChainBSC:
		return "bsc"
	case domain.ChainEthereum:
		return "eth"
	default:
		return fmt.Sprintf("chain%d", uint64(c))
	}
}
