package relay

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dex-arb-bot/business/execution/app"
	"github.com/fd1az/dex-arb-bot/business/execution/domain"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/circuitbreaker"
	"github.com/fd1az/dex-arb-bot/internal/httpclient"
	"github.com/fd1az/dex-arb-bot/internal/logger"
	"github.com/fd1az/dex-arb-bot/internal/ratelimit"
)

const retryBaseDelay = 200 * time.Millisecond

// Config holds the relay endpoint settings.
type Config struct {
	URL         string
	Timeout     time.Duration
	RateLimit   float64
	Burst       int
	MaxAttempts int
}

// bundleParams mirrors the eth_sendBundle parameter object.
type bundleParams struct {
	Txs               []string `json:"txs"`
	BlockNumber       string   `json:"blockNumber"`
	MinTimestamp      uint64   `json:"minTimestamp,omitempty"`
	MaxTimestamp      uint64   `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []string `json:"revertingTxHashes,omitempty"`
}

type bundleRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      uint64         `json:"id"`
	Method  string         `json:"method"`
	Params  []bundleParams `json:"params"`
}

type bundleResponse struct {
	Result *struct {
		BundleHash string `json:"bundleHash"`
	} `json:"result"`
	Error *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submitter posts bundles to a builder relay. Submissions are rate
// limited and pass through a circuit breaker; transport failures retry
// with a linear backoff, relay rejections do not.
type Submitter struct {
	cfg     Config
	builder app.BundleBuilder
	client  *httpclient.Client
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker[*bundleResponse]
	logger  logger.LoggerInterface

	submissions metric.Int64Counter
}

var _ app.Submitter = (*Submitter)(nil)

// NewSubmitter creates a submitter bound to one relay endpoint.
func NewSubmitter(cfg Config, builder app.BundleBuilder, log logger.LoggerInterface) (*Submitter, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithMessage("relay: url is required"))
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}

	client, err := httpclient.New(httpclient.Config{
		Name:    "relay",
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	submissions, err := otel.Meter("execution").Int64Counter(
		"relay_submissions_total",
		metric.WithDescription("Bundle submissions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Submitter{
		cfg:         cfg,
		builder:     builder,
		client:      client,
		limiter:     ratelimit.New(cfg.RateLimit, cfg.Burst),
		breaker:     circuitbreaker.New[*bundleResponse](circuitbreaker.DefaultConfig("relay")),
		logger:      log,
		submissions: submissions,
	}, nil
}

// Submit builds a bundle for the opportunity and pushes it to the
// relay. Success means the relay accepted the bundle.
func (s *Submitter) Submit(ctx context.Context, opp scannerDomain.ArbitrageOpportunity) (domain.ExecutionResult, error) {
	bundle, err := s.builder.Build(ctx, opp)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.ExecutionResult{}, apperror.Wrap(err,
			apperror.CodeRateLimitExceeded, "relay submission throttled")
	}

	var resp *bundleResponse
	for attempt := 1; ; attempt++ {
		resp, err = s.breaker.Execute(func() (*bundleResponse, error) {
			return s.send(ctx, bundle)
		})
		if err == nil {
			break
		}

		// A rejection is the relay's verdict on this bundle; retrying
		// the identical payload cannot change it.
		if apperror.GetCode(err) == apperror.CodeBundleRejected || attempt >= s.cfg.MaxAttempts {
			s.count(ctx, "failed")
			s.logger.Error(ctx, "bundle submission failed",
				"pair", opp.Pair, "attempt", attempt, "error", err)
			return domain.ExecutionResult{}, err
		}

		select {
		case <-ctx.Done():
			return domain.ExecutionResult{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}

	result := domain.ExecutionResult{
		Success:     true,
		SubmittedAt: time.Now(),
	}
	if resp.Result != nil {
		result.BundleHash = resp.Result.BundleHash
	}

	s.count(ctx, "accepted")
	s.logger.Info(ctx, "bundle accepted by relay",
		"pair", opp.Pair,
		"target_block", bundle.TargetBlock,
		"bundle_hash", result.BundleHash)
	return result, nil
}

// send performs one eth_sendBundle round trip.
func (s *Submitter) send(ctx context.Context, bundle domain.Bundle) (*bundleResponse, error) {
	req := bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendBundle",
		Params: []bundleParams{{
			Txs:          bundle.Txs,
			BlockNumber:  hexutil.EncodeUint64(bundle.TargetBlock),
			MinTimestamp: bundle.MinTimestamp,
			MaxTimestamp: bundle.MaxTimestamp,
		}},
	}

	var resp bundleResponse
	status, err := s.client.PostJSON(ctx, "", req, &resp)
	if err != nil {
		return nil, apperror.New(apperror.CodeRelaySubmitFailed,
			apperror.WithCause(err))
	}
	if status >= 300 {
		return nil, apperror.New(apperror.CodeRelaySubmitFailed,
			apperror.WithContext("status", status))
	}
	if resp.Error != nil {
		return nil, apperror.New(apperror.CodeBundleRejected,
			apperror.WithMessage(resp.Error.Message),
			apperror.WithContext("code", resp.Error.Code))
	}
	return &resp, nil
}

func (s *Submitter) count(ctx context.Context, outcome string) {
	s.submissions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
