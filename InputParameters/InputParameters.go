package InputParameters

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ghodss/yaml"

	"github.com/notargets/gorelax/model_problems/Heat2D"
	"github.com/notargets/gorelax/utils"
)

// Parameters obtained from the YAML input file. Pointer fields distinguish an
// explicit zero from an absent key.
type HeatParameters struct {
	Title            string   `yaml:"Title"`
	Seed             string   `yaml:"Seed"`
	Output           string   `yaml:"Output"`
	Threshold        *float64 `yaml:"Threshold"` // Units of 1/256
	MaxIterations    int      `yaml:"MaxIterations"`
	Noise            *float64 `yaml:"Noise"` // Units of 1/256
	Workers          *int     `yaml:"Workers"` // Zero is one worker per CPU
	Timeout          string   `yaml:"Timeout"`
	ExchangePerColor bool     `yaml:"ExchangePerColor"`
	Palette          string   `yaml:"Palette"`
	Preview          int      `yaml:"Preview"`
	PrintEvery       int      `yaml:"PrintEvery"`
}

const DefaultOutput = "resultat.png"

func ReadParameters(filename string) (ip *HeatParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return nil, fmt.Errorf("reading parameters file: %w", err)
	}
	ip = &HeatParameters{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing parameters file %s: %w", filename, err)
	}
	return
}

func (ip *HeatParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *HeatParameters) ApplyDefaults() {
	dc := Heat2D.DefaultConfig()
	if ip.Output == "" {
		ip.Output = DefaultOutput
	}
	if ip.Threshold == nil {
		ip.Threshold = new(float64)
		*ip.Threshold = dc.Threshold * 256
	}
	if ip.MaxIterations == 0 {
		ip.MaxIterations = dc.MaxIterations
	}
	if ip.Noise == nil {
		ip.Noise = new(float64)
		*ip.Noise = dc.Noise * 256
	}
	if ip.Workers == nil {
		ip.Workers = new(int)
		*ip.Workers = dc.Workers
	}
	if ip.Timeout == "" {
		ip.Timeout = dc.Timeout.String()
	}
	if ip.Palette == "" {
		ip.Palette = string(utils.Bezier)
	}
	if ip.PrintEvery == 0 {
		ip.PrintEvery = dc.PrintEvery
	}
}

func (ip *HeatParameters) Validate() (err error) {
	var errs []string
	if _, err = utils.NewPalette(ip.Palette); err != nil {
		errs = append(errs, err.Error())
	}
	if ip.Timeout != "" {
		if _, err = time.ParseDuration(ip.Timeout); err != nil {
			errs = append(errs, fmt.Sprintf("timeout: %v", err))
		}
	}
	if ip.Threshold != nil && *ip.Threshold < 0 {
		errs = append(errs, fmt.Sprintf("threshold %g is negative", *ip.Threshold))
	}
	if ip.Noise != nil && *ip.Noise < 0 {
		errs = append(errs, fmt.Sprintf("noise %g is negative", *ip.Noise))
	}
	if ip.Workers != nil && *ip.Workers < 0 {
		errs = append(errs, fmt.Sprintf("worker count %d is negative", *ip.Workers))
	}
	if ip.MaxIterations < 0 {
		errs = append(errs, fmt.Sprintf("iteration cap %d is negative", ip.MaxIterations))
	}
	if ip.Preview < 0 {
		errs = append(errs, fmt.Sprintf("preview width %d is negative", ip.Preview))
	}
	if len(errs) != 0 {
		return fmt.Errorf("invalid parameters: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SolverConfig maps validated parameters onto a solver configuration
func (ip *HeatParameters) SolverConfig(verbose bool, out io.Writer) (cfg Heat2D.Config, err error) {
	ip.ApplyDefaults()
	if err = ip.Validate(); err != nil {
		return
	}
	cfg = Heat2D.DefaultConfig()
	cfg.Threshold = *ip.Threshold / 256
	cfg.MaxIterations = ip.MaxIterations
	cfg.Noise = *ip.Noise / 256
	cfg.Workers = *ip.Workers
	cfg.Timeout, _ = time.ParseDuration(ip.Timeout)
	cfg.ExchangePerColor = ip.ExchangePerColor
	cfg.PrintEvery = ip.PrintEvery
	cfg.Verbose = verbose
	cfg.Out = out
	return
}

func (ip *HeatParameters) Print(w io.Writer) {
	if ip.Title != "" {
		fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	}
	fmt.Fprintf(w, "[%s]\t\t= Seed\n", ip.Seed)
	fmt.Fprintf(w, "[%s]\t\t= Output\n", ip.Output)
	if ip.Threshold != nil {
		fmt.Fprintf(w, "%8.5f\t\t= Threshold (/256)\n", *ip.Threshold)
	}
	fmt.Fprintf(w, "[%d]\t\t\t= Max Iterations\n", ip.MaxIterations)
	if ip.Noise != nil {
		fmt.Fprintf(w, "%8.5f\t\t= Noise (/256)\n", *ip.Noise)
	}
	if ip.Workers != nil {
		fmt.Fprintf(w, "[%d]\t\t\t= Workers\n", *ip.Workers)
	}
	if ip.Timeout != "" {
		fmt.Fprintf(w, "[%s]\t\t\t= Timeout\n", ip.Timeout)
	}
	fmt.Fprintf(w, "[%v]\t\t\t= Exchange Per Color\n", ip.ExchangePerColor)
	fmt.Fprintf(w, "[%s]\t\t= Palette\n", ip.Palette)
}
