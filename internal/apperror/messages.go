package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	// WebSocket connection errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",
	CodeConnectionFailed:         "Failed to establish connection",
	CodeMaxReconnectsExceeded:    "Maximum reconnection attempts reached",

	// Feed protocol errors
	CodeFeedNotConnected:    "Feed is not connected",
	CodeSubscribeFailed:     "Failed to subscribe to pool events",
	CodeEventDecodeFailed:   "Failed to decode pool event",
	CodeUnknownPool:         "Event references an unknown pool",
	CodeUpdateDeliveryError: "Failed to deliver price update",

	// Pipeline errors
	CodeNormalizationFailed: "Price normalization failed",
	CodePipelineClosed:      "Pipeline is closed",

	// Scanner errors
	CodeSpreadCalculationError: "Spread calculation error",
	CodeInsufficientLiquidity:  "Insufficient liquidity for trade size",
	CodeInvalidTradeSize:       "Invalid trade size",

	// Risk errors
	CodePositionLimitExceeded: "Position size limit exceeded",
	CodeExposureLimitExceeded: "Total exposure limit exceeded",
	CodeCooldownActive:        "Cooldown active after recent failure",
	CodeTradingHalted:         "Trading halted by circuit breaker",

	// Validation and execution errors
	CodeSimulationFailed:    "Trade simulation failed",
	CodeSlippageExceeded:    "Slippage exceeds configured maximum",
	CodeRelaySubmitFailed:   "Failed to submit bundle to relay",
	CodeBundleRejected:      "Bundle rejected by relay",
	CodeGasEstimationFailed: "Gas estimation failed",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
