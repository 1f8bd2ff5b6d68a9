package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Feed and connection error codes
const (
	// WebSocket connection errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
	CodeConnectionFailed         Code = "CONNECTION_FAILED"
	CodeMaxReconnectsExceeded    Code = "MAX_RECONNECTS_EXCEEDED"

	// Feed protocol errors
	CodeFeedNotConnected    Code = "FEED_NOT_CONNECTED"
	CodeSubscribeFailed     Code = "SUBSCRIBE_FAILED"
	CodeEventDecodeFailed   Code = "EVENT_DECODE_FAILED"
	CodeUnknownPool         Code = "UNKNOWN_POOL"
	CodeUpdateDeliveryError Code = "UPDATE_DELIVERY_ERROR"

	// Pipeline errors
	CodeNormalizationFailed Code = "NORMALIZATION_FAILED"
	CodePipelineClosed      Code = "PIPELINE_CLOSED"

	// Scanner errors
	CodeSpreadCalculationError Code = "SPREAD_CALCULATION_ERROR"
	CodeInsufficientLiquidity  Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidTradeSize       Code = "INVALID_TRADE_SIZE"

	// Risk errors
	CodePositionLimitExceeded Code = "POSITION_LIMIT_EXCEEDED"
	CodeExposureLimitExceeded Code = "EXPOSURE_LIMIT_EXCEEDED"
	CodeCooldownActive        Code = "COOLDOWN_ACTIVE"
	CodeTradingHalted         Code = "TRADING_HALTED"

	// Validation and execution errors
	CodeSimulationFailed    Code = "SIMULATION_FAILED"
	CodeSlippageExceeded    Code = "SLIPPAGE_EXCEEDED"
	CodeRelaySubmitFailed   Code = "RELAY_SUBMIT_FAILED"
	CodeBundleRejected      Code = "BUNDLE_REJECTED"
	CodeGasEstimationFailed Code = "GAS_ESTIMATION_FAILED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
