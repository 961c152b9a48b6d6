package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gorelax/types"
)

func TestComm(t *testing.T) {
	ctx := context.Background()
	{ // Point to point transfers copy the payload
		w := NewWorld(2, time.Second)
		c0, c1 := w.Comm(0), w.Comm(1)
		data := []float64{1, 2, 3}
		sreq := c0.Isend(ctx, 1, TagUp, data)
		data[0] = 99 // Must not leak into the message
		buf := make([]float64, 3)
		require.NoError(t, c1.Recv(ctx, 0, TagUp, buf))
		require.NoError(t, sreq.Wait())
		assert.Equal(t, []float64{1, 2, 3}, buf)
	}
	{ // Messages on one link arrive in posting order, tags are independent
		w := NewWorld(2, time.Second)
		c0, c1 := w.Comm(0), w.Comm(1)
		for i := 0; i < 3; i++ {
			require.NoError(t, c0.Send(ctx, 1, TagDown, []float64{float64(i)}))
		}
		require.NoError(t, c0.Send(ctx, 1, TagUp, []float64{-1}))
		buf := make([]float64, 1)
		require.NoError(t, c1.Recv(ctx, 0, TagUp, buf))
		assert.Equal(t, -1., buf[0])
		for i := 0; i < 3; i++ {
			require.NoError(t, c1.Recv(ctx, 0, TagDown, buf))
			assert.Equal(t, float64(i), buf[0])
		}
	}
	{ // A rank may send to itself
		w := NewWorld(1, time.Second)
		c := w.Comm(0)
		buf := make([]float64, 2)
		rreq := c.Irecv(ctx, 0, TagUp, buf)
		sreq := c.Isend(ctx, 0, TagUp, []float64{4, 5})
		require.NoError(t, WaitAll(sreq, rreq))
		assert.Equal(t, []float64{4, 5}, buf)
	}
	{ // Allreduce gives every rank the identical sum
		NP := 5
		w := NewWorld(NP, time.Second)
		sums := make([]float64, NP)
		errs := make([]error, NP)
		var wg sync.WaitGroup
		for r := 0; r < NP; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				sums[r], errs[r] = w.Comm(r).AllreduceSum(ctx, 0.1*float64(r+1))
			}(r)
		}
		wg.Wait()
		for r := 0; r < NP; r++ {
			require.NoError(t, errs[r])
			assert.Equal(t, sums[0], sums[r])
		}
		assert.InDelta(t, 1.5, sums[0], 1.e-12)
	}
	{ // A receive with no sender times out and names the stalled pair
		w := NewWorld(3, 20*time.Millisecond)
		c := w.Comm(0)
		c.Iteration = 7
		err := c.Recv(ctx, 2, TagDown, make([]float64, 4))
		var cf *types.CommunicationFailure
		require.ErrorAs(t, err, &cf)
		assert.Equal(t, 0, cf.Rank)
		assert.Equal(t, 2, cf.Peer)
		assert.Equal(t, TagDown, cf.Tag)
		assert.Equal(t, 7, cf.Iteration)
		assert.True(t, errors.Is(err, ErrTimeout))
		assert.Equal(t, types.ExitComm, types.ExitCode(err))
	}
	{ // Allreduce with a missing rank fails
		w := NewWorld(2, 20*time.Millisecond)
		_, err := w.Comm(0).AllreduceSum(ctx, 1)
		var cf *types.CommunicationFailure
		require.ErrorAs(t, err, &cf)
		assert.Contains(t, cf.Op, "allreduce")
		assert.Equal(t, 1, cf.Peer)
	}
	{ // Cancellation aborts pending transfers
		w := NewWorld(2, 0)
		cctx, cancel := context.WithCancel(ctx)
		req := w.Comm(1).Irecv(cctx, 0, TagUp, make([]float64, 1))
		cancel()
		err := req.Wait()
		assert.True(t, errors.Is(err, context.Canceled))
		// The caller's cancel is not blamed on the peer
		var cf *types.CommunicationFailure
		assert.False(t, errors.As(err, &cf))
		sctx, stop := context.WithCancel(ctx)
		stop()
		w = NewWorld(2, time.Second)
		for i := 0; i < linkDepth; i++ { // Fill the link so the next send has to wait
			require.NoError(t, w.Comm(0).Send(ctx, 1, TagDown, []float64{float64(i)}))
		}
		err = w.Comm(0).Send(sctx, 1, TagDown, []float64{9})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.As(err, &cf))
	}
	{ // Size mismatch is a communication failure
		w := NewWorld(2, time.Second)
		require.NoError(t, w.Comm(0).Send(ctx, 1, TagGather, []float64{1, 2}))
		err := w.Comm(1).Recv(ctx, 0, TagGather, make([]float64, 3))
		var cf *types.CommunicationFailure
		assert.ErrorAs(t, err, &cf)
	}
	assert.Panics(t, func() { NewWorld(2, 0).Comm(2) })
}
