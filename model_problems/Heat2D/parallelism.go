package Heat2D

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/gorelax/utils"
)

// worker owns a slab of rows: local rows [1, Height-1) are its partition of
// the global interior, local rows 0 and Height-1 are ghost rows. The first
// and last ranks border the fixed grid boundary, so the ring transfers that
// wrap around to them are received and dropped.
type worker struct {
	rank, NP     int
	rowMin       int // Global index of the first owned row
	up, down     int // Ring neighbours
	first, last  bool
	slab         *Grid
	pm           *utils.PartitionMap
	comm         *utils.Comm
	above, below []float64 // Receive buffers for the ghost rows
	top, bottom  []float64 // Send buffers for the boundary owned rows
}

func newWorkers(g *Grid, NP int, world *utils.World) (workers []*worker, err error) {
	var (
		pm *utils.PartitionMap
		W  = g.Width
	)
	if pm, err = utils.NewPartitionMap(NP, g.Height); err != nil {
		return
	}
	workers = make([]*worker, NP)
	for np := 0; np < NP; np++ {
		rowMin, rowMax := pm.GetBucketRange(np)
		up, down := pm.Neighbors(np)
		workers[np] = &worker{
			rank:   np,
			NP:     NP,
			rowMin: rowMin,
			up:     up,
			down:   down,
			first:  np == 0,
			last:   np == NP-1,
			slab:   g.Slab(rowMin, rowMax),
			pm:     pm,
			comm:   world.Comm(np),
			above:  make([]float64, W),
			below:  make([]float64, W),
			top:    make([]float64, W),
			bottom: make([]float64, W),
		}
	}
	return
}

// postHalo starts the four ghost row transfers of one exchange
func (w *worker) postHalo(ctx context.Context) (reqs []*utils.Request) {
	var (
		H = w.slab.Height
	)
	w.slab.RowTemperatures(1, w.top)
	w.slab.RowTemperatures(H-2, w.bottom)
	return []*utils.Request{
		w.comm.Isend(ctx, w.up, utils.TagUp, w.top),
		w.comm.Irecv(ctx, w.down, utils.TagUp, w.below),
		w.comm.Isend(ctx, w.down, utils.TagDown, w.bottom),
		w.comm.Irecv(ctx, w.up, utils.TagDown, w.above),
	}
}

// storeHalo copies completed receives into the ghost rows
func (w *worker) storeHalo() {
	if !w.first {
		w.slab.SetRowTemperatures(0, w.above)
	}
	if !w.last {
		w.slab.SetRowTemperatures(w.slab.Height-1, w.below)
	}
}

func (w *worker) exchangeHalo(ctx context.Context) (err error) {
	if err = utils.WaitAll(w.postHalo(ctx)...); err != nil {
		return
	}
	w.storeHalo()
	return
}

func (s *Solver) solveDistributed(ctx context.Context, g *Grid, NP int) (cc *Controller, err error) {
	var (
		world   = utils.NewWorld(NP, s.Timeout)
		workers []*worker
		ccs     = make([]*Controller, NP)
	)
	if workers, err = newWorkers(g, NP, world); err != nil {
		return
	}
	grp, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		ccs[w.rank] = NewController(s.Threshold, s.MaxIterations)
		grp.Go(func() error {
			return s.runWorker(gctx, w, ccs[w.rank], g)
		})
	}
	if err = grp.Wait(); err != nil {
		// Workers see the group context, report the caller's reason instead
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return
	}
	cc = ccs[0]
	return
}

// runWorker relaxes one slab until its controller reaches a terminal state,
// then sends the owned rows to rank 0. Rank 0 assembles them into g, no other
// rank touches g.
func (s *Solver) runWorker(ctx context.Context, w *worker, cc *Controller, g *Grid) (err error) {
	var (
		H     = w.slab.Height
		cells = g.Width * g.Height
	)
	for !cc.State().Terminal() {
		if err = ctx.Err(); err != nil {
			return
		}
		w.comm.Iteration = cc.Iterations() + 1
		var local float64
		if s.ExchangePerColor {
			local = w.slab.RelaxPass(1, H-1, 0, s.Noise)
			if err = w.exchangeHalo(ctx); err != nil {
				return
			}
			local += w.slab.RelaxPass(1, H-1, 1, s.Noise)
		} else {
			local = w.slab.Step(1, H-1, s.Noise)
		}
		reqs := w.postHalo(ctx)
		var global float64
		if global, err = w.comm.AllreduceSum(ctx, local); err != nil {
			return
		}
		if err = utils.WaitAll(reqs...); err != nil {
			return
		}
		w.storeHalo()
		metric := Metric(global, cells)
		if err = checkMetric(metric, cc.Iterations()+1); err != nil {
			return
		}
		cc.Advance(metric)
		if w.first {
			s.PrintUpdate(cc)
		}
	}
	return w.gather(ctx, g)
}

func (w *worker) gather(ctx context.Context, g *Grid) (err error) {
	var (
		W    = g.Width
		rows = w.slab.Height - 2
	)
	if !w.first {
		owned := w.slab.Temperatures()[W : W*(rows+1)]
		return w.comm.Send(ctx, 0, utils.TagGather, owned)
	}
	for i := 1; i <= rows; i++ {
		g.SetRowTemperatures(w.rowMin+i-1, w.slab.RowTemperatures(i, nil))
	}
	for np := 1; np < w.NP; np++ {
		rowMin, rowMax := w.pm.GetBucketRange(np)
		buf := make([]float64, (rowMax-rowMin)*W)
		if err = w.comm.Recv(ctx, np, utils.TagGather, buf); err != nil {
			return fmt.Errorf("gathering rows [%d,%d): %w", rowMin, rowMax, err)
		}
		for row := rowMin; row < rowMax; row++ {
			off := (row - rowMin) * W
			g.SetRowTemperatures(row, buf[off:off+W])
		}
	}
	return
}
