package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-job-ingest/config"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{name: "no services enabled", want: 0},
		{name: "http only", modes: []config.ServiceMode{config.ServiceModeHTTP}, want: 1},
		{name: "http and ingest", modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeIngest}, want: 2},
		{name: "all services enabled", modes: config.ValidServiceModes(), want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			assert.Equal(t, tt.want, errorChannelCapacity(enabled))
			assert.Equal(t, tt.want+1, errorChannelBufferSize(enabled))
		})
	}
}

func TestLaunchBackground(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("disabled mode is not started", func(t *testing.T) {
		deps := &serviceStartupDeps{
			logger:          logger,
			enabledServices: map[config.ServiceMode]bool{config.ServiceModeHTTP: true},
			errCh:           make(chan error, 1),
		}
		started := false
		done := launchBackground(context.Background(), deps, backgroundService{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(context.Context) error {
				started = true
				return nil
			},
		})
		assert.Nil(t, done)
		assert.False(t, started)
	})

	t.Run("failure is reported on the error channel", func(t *testing.T) {
		deps := &serviceStartupDeps{
			logger:          logger,
			enabledServices: map[config.ServiceMode]bool{config.ServiceModeIngest: true},
			errCh:           make(chan error, 1),
		}
		boom := errors.New("boom")
		done := launchBackground(context.Background(), deps, backgroundService{
			mode:  config.ServiceModeIngest,
			name:  "ingest orchestrator",
			start: func(context.Context) error { return boom },
		})
		require.NotNil(t, done)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("background service did not finish")
		}
		select {
		case err := <-deps.errCh:
			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), "ingest orchestrator failed")
		default:
			t.Fatal("expected error on channel")
		}
	})
}

func TestGracefulStopWaitsForBackgrounds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	deps := &serviceStartupDeps{
		logger:          logger,
		enabledServices: map[config.ServiceMode]bool{config.ServiceModeIngest: true},
		errCh:           make(chan error, 2),
	}

	stopped := make(chan struct{})
	handles := startBackgroundServices(ctx, deps, []backgroundService{{
		mode: config.ServiceModeIngest,
		name: "ingest orchestrator",
		start: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		},
	}})
	require.Len(t, handles, 1)

	cancel()
	require.NoError(t, gracefulStop(shutdownConfig{ctx: ctx, logger: logger, backgrounds: handles}))

	select {
	case <-stopped:
	default:
		t.Fatal("gracefulStop returned before the service stopped")
	}
}
