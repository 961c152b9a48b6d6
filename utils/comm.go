package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notargets/gorelax/types"
)

var ErrTimeout = errors.New("timed out waiting for peer")

// Messages posted ahead of the matching receive, per (source, destination, tag)
const linkDepth = 4

type linkKey struct {
	src, dst, tag int
}

// World is the set of NP ranks taking part in a run. Every ordered pair of
// ranks gets one FIFO channel per tag, so messages between two ranks with the
// same tag are received in the order they were posted.
type World struct {
	NP      int
	Timeout time.Duration // Bound on every wait, zero waits forever
	mu      sync.Mutex
	links   map[linkKey]chan []float64
}

func NewWorld(NP int, timeout time.Duration) *World {
	return &World{
		NP:      NP,
		Timeout: timeout,
		links:   make(map[linkKey]chan []float64),
	}
}

func (w *World) link(src, dst, tag int) chan []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := linkKey{src, dst, tag}
	ch, exists := w.links[key]
	if !exists {
		ch = make(chan []float64, linkDepth)
		w.links[key] = ch
	}
	return ch
}

func (w *World) Comm(rank int) *Comm {
	if rank < 0 || rank >= w.NP {
		panic(fmt.Sprintf("rank %d out of bounds for world of size %d", rank, w.NP))
	}
	return &Comm{world: w, Rank: rank}
}

// Comm is one rank's view of the World. A Comm must only be used from the
// goroutine that owns the rank.
type Comm struct {
	world     *World
	Rank      int
	Iteration int // Reported in failures
}

func (c *Comm) Size() int {
	return c.world.NP
}

// Request tracks one non-blocking transfer
type Request struct {
	done chan struct{}
	err  error
}

func (r *Request) Wait() error {
	<-r.done
	return r.err
}

// WaitAll waits for every request and returns the first failure
func WaitAll(reqs ...*Request) (err error) {
	for _, r := range reqs {
		if rerr := r.Wait(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return
}

func (c *Comm) failure(op string, peer, tag, iter int, err error) error {
	return &types.CommunicationFailure{
		Op:        op,
		Rank:      c.Rank,
		Peer:      peer,
		Tag:       tag,
		Iteration: iter,
		Err:       err,
	}
}

func (c *Comm) timer() (t *time.Timer, expired <-chan time.Time) {
	if c.world.Timeout > 0 {
		t = time.NewTimer(c.world.Timeout)
		expired = t.C
	}
	return
}

// Isend posts a copy of data to dest. The request completes once the
// message has been queued on the link.
func (c *Comm) Isend(ctx context.Context, dest, tag int, data []float64) (r *Request) {
	var (
		msg  = make([]float64, len(data))
		ch   = c.world.link(c.Rank, dest, tag)
		iter = c.Iteration
	)
	copy(msg, data)
	r = &Request{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		t, expired := c.timer()
		if t != nil {
			defer t.Stop()
		}
		select {
		case ch <- msg:
		case <-ctx.Done():
			r.err = ctx.Err()
		case <-expired:
			r.err = c.failure("send", dest, tag, iter, ErrTimeout)
		}
	}()
	return
}

// Irecv posts a receive from src into buf. buf must not be touched until the
// request has been waited on.
func (c *Comm) Irecv(ctx context.Context, src, tag int, buf []float64) (r *Request) {
	var (
		ch   = c.world.link(src, c.Rank, tag)
		iter = c.Iteration
	)
	r = &Request{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		t, expired := c.timer()
		if t != nil {
			defer t.Stop()
		}
		select {
		case msg := <-ch:
			if len(msg) != len(buf) {
				r.err = c.failure("recv", src, tag, iter,
					fmt.Errorf("message of %d values for a buffer of %d", len(msg), len(buf)))
				return
			}
			copy(buf, msg)
		case <-ctx.Done():
			r.err = ctx.Err()
		case <-expired:
			r.err = c.failure("recv", src, tag, iter, ErrTimeout)
		}
	}()
	return
}

func (c *Comm) Send(ctx context.Context, dest, tag int, data []float64) error {
	return c.Isend(ctx, dest, tag, data).Wait()
}

func (c *Comm) Recv(ctx context.Context, src, tag int, buf []float64) error {
	return c.Irecv(ctx, src, tag, buf).Wait()
}

// AllreduceSum sends x to every other rank and sums the contributions in rank
// order, so every rank computes a bit-identical result.
func (c *Comm) AllreduceSum(ctx context.Context, x float64) (sum float64, err error) {
	var (
		NP   = c.Size()
		vals = make([][]float64, NP)
		reqs = make([]*Request, 0, 2*(NP-1))
	)
	for r := 0; r < NP; r++ {
		if r == c.Rank {
			vals[r] = []float64{x}
			continue
		}
		vals[r] = make([]float64, 1)
		reqs = append(reqs,
			c.Isend(ctx, r, TagReduce, []float64{x}),
			c.Irecv(ctx, r, TagReduce, vals[r]))
	}
	if err = WaitAll(reqs...); err != nil {
		var cf *types.CommunicationFailure
		if errors.As(err, &cf) {
			cf.Op = "allreduce " + cf.Op
		}
		return
	}
	for r := 0; r < NP; r++ {
		sum += vals[r][0]
	}
	return
}

// Message tags
const (
	TagUp     = 123 // Top owned row, travelling to the rank above
	TagGather = 456
	TagDown   = 789 // Bottom owned row, travelling to the rank below
	TagReduce = 321
)
