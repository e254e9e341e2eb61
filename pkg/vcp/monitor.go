package vcp

import "context"

// SessionMonitor receives connection lifecycle events from the supervisor.
// Implementations must not block; they are called from the supervisor loop.
type SessionMonitor interface {
	// OnConnectAttempt is called before each dial. attempt counts
	// consecutive attempts since the last established session, from 1.
	OnConnectAttempt(ctx context.Context, attempt int)

	// OnConnectFailed is called when an attempt fails, before the retry delay.
	OnConnectFailed(ctx context.Context, attempt int, err error)

	// OnSessionStart is called once a connection is established.
	OnSessionStart(ctx context.Context, endpoint string)

	// OnSessionEnd is called after both pumps have exited. err is the reason
	// the session ended, or nil if it ended because of shutdown.
	OnSessionEnd(ctx context.Context, endpoint string, err error)
}

// BaseSessionMonitor is a no-op SessionMonitor meant to be embedded.
type BaseSessionMonitor struct{}

func (BaseSessionMonitor) OnConnectAttempt(ctx context.Context, attempt int) {}
func (BaseSessionMonitor) OnConnectFailed(ctx context.Context, attempt int, err error) {}
func (BaseSessionMonitor) OnSessionStart(ctx context.Context, endpoint string) {}
func (BaseSessionMonitor) OnSessionEnd(ctx context.Context, endpoint string, err error) {}
