package lifecycle

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestShutdownManager_Triggers(t *testing.T) {
	tests := []struct {
		name       string
		trigger    func(sm *ShutdownManager, cancelParent context.CancelFunc)
		wantReason string
		wantDown   bool
	}{
		{
			name:       "explicit shutdown",
			trigger:    func(sm *ShutdownManager, _ context.CancelFunc) { sm.Shutdown("store unavailable") },
			wantReason: "store unavailable",
			wantDown:   true,
		},
		{
			name:       "signal",
			trigger:    func(sm *ShutdownManager, _ context.CancelFunc) { sm.signalChan <- syscall.SIGTERM },
			wantReason: "received signal: terminated",
			wantDown:   true,
		},
		{
			name:     "parent cancelled",
			trigger:  func(_ *ShutdownManager, cancel context.CancelFunc) { cancel() },
			wantDown: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewShutdownManager()
			defer sm.Stop()
			assert.False(t, sm.IsShutdown())

			parent, cancel := context.WithCancel(context.Background())
			defer cancel()
			ctx := sm.Start(parent)

			tt.trigger(sm, cancel)
			waitDone(t, ctx)

			assert.Equal(t, tt.wantDown, sm.IsShutdown())
			assert.Equal(t, tt.wantReason, sm.Reason())
		})
	}
}

func TestShutdownManager_FirstReasonWins(t *testing.T) {
	sm := NewShutdownManager()
	sm.Shutdown("first")
	sm.Shutdown("second")
	assert.Equal(t, "first", sm.Reason())
}

func TestShutdownManager_RunHooks(t *testing.T) {
	sm := NewShutdownManager()

	var order []string
	closeErr := errors.New("close failed")
	hook := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	sm.OnShutdown("storage", hook("storage", closeErr))
	sm.OnShutdown("tokens", hook("tokens", nil))
	sm.OnShutdown("ratelimiter", hook("ratelimiter", nil))

	err := sm.RunHooks(context.Background())
	require.ErrorIs(t, err, closeErr)
	assert.Contains(t, err.Error(), "storage:")
	assert.Equal(t, []string{"ratelimiter", "tokens", "storage"}, order)

	require.NoError(t, sm.RunHooks(context.Background()))
	assert.Len(t, order, 3, "hooks run once")
}

func TestShutdownManager_StopIsIdempotent(t *testing.T) {
	sm := NewShutdownManager()
	_ = sm.Start(context.Background())
	sm.Stop()
	sm.Stop()

	sm.Shutdown("late")
	assert.True(t, sm.IsShutdown())
}

func TestGracefulShutdown(t *testing.T) {
	failed := errors.New("flush failed")

	tests := []struct {
		name    string
		fn      func(ctx context.Context) error
		timeout time.Duration
		parent  func() context.Context
		wantErr string
	}{
		{
			name:    "completes",
			fn:      func(context.Context) error { return nil },
			timeout: time.Second,
		},
		{
			name:    "returns hook error",
			fn:      func(context.Context) error { return failed },
			timeout: time.Second,
			wantErr: failed.Error(),
		},
		{
			name: "times out",
			fn: func(context.Context) error {
				time.Sleep(300 * time.Millisecond)
				return nil
			},
			timeout: 50 * time.Millisecond,
			wantErr: "shutdown timed out after 50ms",
		},
		{
			name: "parent already cancelled",
			fn: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			timeout: time.Second,
			parent: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := context.Background()
			if tt.parent != nil {
				parent = tt.parent()
			}

			err := GracefulShutdown(parent, tt.fn, tt.timeout)
			switch {
			case tt.parent != nil:
				assert.Error(t, err)
			case tt.wantErr == "":
				assert.NoError(t, err)
			default:
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}
