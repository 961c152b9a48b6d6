package Heat2D

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/unixpickle/essentials"

	"github.com/notargets/gorelax/types"
	"github.com/notargets/gorelax/utils"
)

// Controller decides when a run stops. Every worker of a distributed run
// drives its own Controller with the same reduced metric, so they all stop
// on the same iteration.
type Controller struct {
	Threshold     float64
	MaxIterations int
	iterations    int
	metric        float64
	state         types.RunState
}

func NewController(threshold float64, maxIterations int) *Controller {
	return &Controller{
		Threshold:     threshold,
		MaxIterations: maxIterations,
		state:         types.Running,
	}
}

// Advance records the metric of one completed step
func (cc *Controller) Advance(metric float64) types.RunState {
	if cc.state.Terminal() {
		return cc.state
	}
	cc.iterations++
	cc.metric = metric
	switch {
	case metric < cc.Threshold:
		cc.state = types.Converged
	case cc.iterations >= cc.MaxIterations:
		cc.state = types.IterationCapReached
	}
	return cc.state
}

func (cc *Controller) State() types.RunState { return cc.state }
func (cc *Controller) Iterations() int       { return cc.iterations }
func (cc *Controller) Metric() float64       { return cc.metric }

type Config struct {
	Threshold        float64
	MaxIterations    int
	Noise            float64
	Workers          int           // Zero picks one worker per CPU
	Timeout          time.Duration // Bound on each wait for a peer, zero waits forever
	ExchangePerColor bool          // Exchange ghost rows between the two passes as well
	Verbose          bool
	PrintEvery       int
	Out              io.Writer
}

func DefaultConfig() Config {
	return Config{
		Threshold:     Threshold,
		MaxIterations: MaxIterations,
		Noise:         Noise,
		Workers:       1,
		Timeout:       30 * time.Second,
		PrintEvery:    100,
		Out:           os.Stdout,
	}
}

type Result struct {
	State      types.RunState
	Iterations int
	Metric     float64
	TMin, TMax float64
	Workers    int
	Elapsed    time.Duration
}

// Summary is the one line report of a finished run
func (r *Result) Summary() string {
	return fmt.Sprintf("Iteration #%d, mean adjustment = %g / 256, t_min = %g, t_max = %g",
		r.Iterations, r.Metric*256, r.TMin, r.TMax)
}

type Solver struct {
	Config
}

func NewSolver(cfg Config) (s *Solver, err error) {
	switch {
	case cfg.Threshold < 0:
		err = fmt.Errorf("threshold must not be negative, have %g", cfg.Threshold)
	case cfg.MaxIterations < 1:
		err = fmt.Errorf("iteration cap must be at least 1, have %d", cfg.MaxIterations)
	case cfg.Noise < 0:
		err = fmt.Errorf("noise floor must not be negative, have %g", cfg.Noise)
	case cfg.Workers < 0:
		err = fmt.Errorf("worker count must not be negative, have %d", cfg.Workers)
	case cfg.Timeout < 0:
		err = fmt.Errorf("timeout must not be negative, have %s", cfg.Timeout)
	}
	if err != nil {
		return
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.PrintEvery < 1 {
		cfg.PrintEvery = 1
	}
	s = &Solver{Config: cfg}
	return
}

// ParallelDegree resolves the worker count for a grid of the given height
func (s *Solver) ParallelDegree(height int) (NP int) {
	NP = s.Workers
	if NP == 0 {
		NP = runtime.NumCPU()
	}
	return essentials.MaxInt(1, essentials.MinInt(NP, height-2))
}

// Solve relaxes g in place until it converges or reaches the iteration cap.
// With more than one worker the rows are split across goroutines that share
// nothing but messages, and the assembled result is written back into g.
func (s *Solver) Solve(ctx context.Context, g *Grid) (res *Result, err error) {
	var (
		NP    = s.ParallelDegree(g.Height)
		start = time.Now()
		cc    *Controller
	)
	s.PrintInitialization(g, NP)
	if NP == 1 {
		cc, err = s.solveSerial(ctx, g)
	} else {
		cc, err = s.solveDistributed(ctx, g, NP)
	}
	if err != nil {
		return
	}
	res = &Result{
		State:      cc.State(),
		Iterations: cc.Iterations(),
		Metric:     cc.Metric(),
		Workers:    NP,
		Elapsed:    time.Since(start),
	}
	res.TMin, res.TMax = g.MinMax()
	s.PrintFinal(g, res)
	return
}

func (s *Solver) solveSerial(ctx context.Context, g *Grid) (cc *Controller, err error) {
	var (
		cells = g.Width * g.Height
	)
	cc = NewController(s.Threshold, s.MaxIterations)
	for !cc.State().Terminal() {
		if err = ctx.Err(); err != nil {
			return
		}
		metric := Metric(g.Step(1, g.Height-1, s.Noise), cells)
		if err = checkMetric(metric, cc.Iterations()+1); err != nil {
			return
		}
		cc.Advance(metric)
		s.PrintUpdate(cc)
	}
	return
}

func (s *Solver) PrintInitialization(g *Grid, NP int) {
	if !s.Verbose {
		return
	}
	fmt.Fprintf(s.Out, "Relaxing %dx%d grid on %d worker(s)\n", g.Width, g.Height, NP)
	fmt.Fprintf(s.Out, "Threshold = %g / 256, Max Iterations = %d, Noise = %g\n",
		s.Threshold*256, s.MaxIterations, s.Noise)
	if NP > 1 && s.ExchangePerColor {
		fmt.Fprintf(s.Out, "Exchanging ghost rows after each checkerboard pass\n")
	}
	fmt.Fprintf(s.Out, "%10s%16s\n", "iter", "adjust(/256)")
}

func (s *Solver) PrintUpdate(cc *Controller) {
	if !s.Verbose {
		return
	}
	if cc.Iterations()%s.PrintEvery == 0 || cc.Iterations() == 1 || cc.State().Terminal() {
		fmt.Fprintf(s.Out, "%10d%16.6e\n", cc.Iterations(), cc.Metric()*256)
	}
}

func (s *Solver) PrintFinal(g *Grid, res *Result) {
	if !s.Verbose {
		return
	}
	rate := float64(res.Elapsed.Microseconds()) / float64(g.Width*g.Height*res.Iterations)
	fmt.Fprintf(s.Out, "%s after %d iterations\n", res.State, res.Iterations)
	fmt.Fprintf(s.Out, "Rate of execution = %8.5f us/(cell*iteration)\n", rate)
	fmt.Fprintf(s.Out, "%s\n", utils.GetMemUsage())
}

// checkMetric stops a run whose temperatures have stopped being numbers
func checkMetric(metric float64, iteration int) (err error) {
	if !utils.IsFinite(metric) {
		err = fmt.Errorf("relaxation diverged at iteration %d, mean adjustment %g", iteration, metric)
	}
	return
}
