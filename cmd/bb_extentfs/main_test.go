package main

import (
	"context"
	"testing"
	"time"

	"github.com/buildbarn/bb-extentfs/internal/mock"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFlushUntilShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger, _ := test.NewNullLogger()

	t.Run("PeriodicFlushes", func(t *testing.T) {
		image := mock.NewMockImage(ctrl)
		clock := mock.NewMockClock(ctrl)
		ctx, cancel := context.WithCancel(context.Background())

		// Two timers fire, causing two flushes. Shutdown is
		// requested while waiting for the third timer.
		timer1 := mock.NewMockTimer(ctrl)
		timerChannel1 := make(chan time.Time, 1)
		timerChannel1 <- time.Unix(1000, 0)
		timer2 := mock.NewMockTimer(ctrl)
		timerChannel2 := make(chan time.Time, 1)
		timerChannel2 <- time.Unix(1060, 0)
		timer3 := mock.NewMockTimer(ctrl)
		unmounted := false
		gomock.InOrder(
			clock.EXPECT().NewTimer(time.Minute).Return(timer1, timerChannel1),
			image.EXPECT().Sync(),
			clock.EXPECT().NewTimer(time.Minute).Return(timer2, timerChannel2),
			image.EXPECT().Sync().Return(status.Error(codes.Internal, "Disk on fire")),
			clock.EXPECT().NewTimer(time.Minute).DoAndReturn(func(d time.Duration) (*mock.MockTimer, <-chan time.Time) {
				cancel()
				return timer3, nil
			}),
			timer3.EXPECT().Stop().Return(true),
			image.EXPECT().Sync().Do(func() {
				require.True(t, unmounted)
			}),
			image.EXPECT().Close(),
		)

		require.NoError(t, flushUntilShutdown(ctx, image, func() error {
			unmounted = true
			return nil
		}, clock, time.Minute, logger))
	})

	t.Run("NoInterval", func(t *testing.T) {
		image := mock.NewMockImage(ctrl)
		clock := mock.NewMockClock(ctrl)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		gomock.InOrder(
			image.EXPECT().Sync(),
			image.EXPECT().Close(),
		)
		require.NoError(t, flushUntilShutdown(ctx, image, func() error { return nil }, clock, 0, logger))
	})

	t.Run("UnmountFailure", func(t *testing.T) {
		// The image must remain mapped while it is still mounted.
		image := mock.NewMockImage(ctrl)
		clock := mock.NewMockClock(ctrl)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		testutil.RequireEqualStatus(
			t,
			status.Error(codes.Unavailable, "Failed to unmount: Device busy"),
			flushUntilShutdown(ctx, image, func() error {
				return status.Error(codes.Unavailable, "Device busy")
			}, clock, 0, logger))
	})
}
