package config

import "time"

// Backend HTTP client timeouts
const (
	GatewayRequestTimeout = 30 * time.Second
	GatewayConnectTimeout = 10 * time.Second
)

// Google OAuth exchange timeout
const OAuthExchangeTimeout = 10 * time.Second

// Loopback callback server
const (
	CallbackReadTimeout     = 10 * time.Second
	CallbackShutdownTimeout = 5 * time.Second
	CallbackWaitTimeout     = 5 * time.Minute
)

// Voice capture countdown tick
const RecordTickInterval = time.Second

// Session store busy timeout
const StoreBusyTimeout = 5 * time.Second
