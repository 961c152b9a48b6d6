/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unixpickle/essentials"

	"github.com/notargets/gorelax/InputParameters"
	"github.com/notargets/gorelax/model_problems/Heat2D"
	"github.com/notargets/gorelax/readfiles"
	"github.com/notargets/gorelax/utils"
)

const exampleFile = `
########################################
Title: "Hot plate"
Seed: plate.png
Output: resultat.png
Threshold: 0.5        # Mean adjustment per cell, units of 1/256
MaxIterations: 5000
Noise: 6.4            # Units of 1/256
Workers: 4            # 0 is one worker per CPU
Timeout: 30s
ExchangePerColor: false
Palette: bezier       # Can be "hue" or "gray"
########################################
`

// RelaxCmd represents the relax command
var RelaxCmd = &cobra.Command{
	Use:   "relax [seed image]",
	Short: "Relax a seed image to steady state and write the result image",
	Long: `
Seeds a grid from an image (red = heat source, green = initial temperature,
blue/256 = conduction), relaxes it and writes the normalized temperature field
as an image.
` + exampleFile,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.HeatParameters
		)
		if ip, err = processInput(viper.GetViper(), args); err != nil {
			return
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		_, err = RunRelax(ctx, ip, viper.GetBool("verbose"), cmd.OutOrStdout())
		return
	},
}

func init() {
	rootCmd.AddCommand(RelaxCmd)
	dc := Heat2D.DefaultConfig()
	RelaxCmd.Flags().StringP("seed", "F", "", "seed image (.png, .bmp, .tiff or .webp)")
	RelaxCmd.Flags().StringP("inputParameters", "I", "", "YAML file for run parameters")
	RelaxCmd.Flags().StringP("output", "o", InputParameters.DefaultOutput, "result image, encoder chosen by extension")
	RelaxCmd.Flags().IntP("workers", "w", dc.Workers, "number of workers, 0 is one per CPU")
	RelaxCmd.Flags().Float64P("threshold", "t", dc.Threshold*256, "convergence threshold on the mean adjustment, units of 1/256")
	RelaxCmd.Flags().IntP("maxIterations", "m", dc.MaxIterations, "iteration cap")
	RelaxCmd.Flags().Float64("noise", dc.Noise*256, "noise floor added to the neighbour average, units of 1/256")
	RelaxCmd.Flags().String("palette", string(utils.Bezier), "result palette: bezier, hue or gray")
	RelaxCmd.Flags().Int("preview", 0, "print an ASCII preview this many columns wide")
	RelaxCmd.Flags().Duration("timeout", dc.Timeout, "bound on each wait for a peer worker")
	RelaxCmd.Flags().Bool("exchangePerColor", false, "exchange ghost rows after each checkerboard pass")
	RelaxCmd.Flags().Int("printEvery", dc.PrintEvery, "iterations between progress lines")
	RelaxCmd.Flags().BoolP("verbose", "v", false, "print parameters and progress")
	for _, key := range relaxKeys {
		essentials.Must(viper.BindPFlag(key, RelaxCmd.Flags().Lookup(key)))
	}
	essentials.Must(viper.BindPFlag("verbose", RelaxCmd.Flags().Lookup("verbose")))
}

var relaxKeys = []string{"seed", "inputParameters", "output", "workers", "threshold",
	"maxIterations", "noise", "palette", "preview", "timeout", "exchangePerColor", "printEvery"}

// processInput layers the settings: flags, environment and config file (all
// through v) over the parameters file, over the defaults.
func processInput(v *viper.Viper, args []string) (ip *InputParameters.HeatParameters, err error) {
	if fn := v.GetString("inputParameters"); fn != "" {
		if ip, err = InputParameters.ReadParameters(fn); err != nil {
			return
		}
	} else {
		ip = &InputParameters.HeatParameters{}
	}
	if len(args) == 1 {
		ip.Seed = args[0]
	}
	if v.IsSet("seed") {
		ip.Seed = v.GetString("seed")
	}
	if v.IsSet("output") {
		ip.Output = v.GetString("output")
	}
	if v.IsSet("workers") {
		ip.Workers = new(int)
		*ip.Workers = v.GetInt("workers")
	}
	if v.IsSet("threshold") {
		ip.Threshold = new(float64)
		*ip.Threshold = v.GetFloat64("threshold")
	}
	if v.IsSet("maxIterations") {
		ip.MaxIterations = v.GetInt("maxIterations")
	}
	if v.IsSet("noise") {
		ip.Noise = new(float64)
		*ip.Noise = v.GetFloat64("noise")
	}
	if v.IsSet("palette") {
		ip.Palette = v.GetString("palette")
	}
	if v.IsSet("preview") {
		ip.Preview = v.GetInt("preview")
	}
	if v.IsSet("timeout") {
		ip.Timeout = v.GetDuration("timeout").String()
	}
	if v.IsSet("exchangePerColor") {
		ip.ExchangePerColor = v.GetBool("exchangePerColor")
	}
	if v.IsSet("printEvery") {
		ip.PrintEvery = v.GetInt("printEvery")
	}
	if len(ip.Seed) == 0 {
		err = fmt.Errorf("must supply a seed image (-F, --seed or first argument), " +
			"optionally with a parameters file (-I, --inputParameters) like:" + exampleFile)
		return
	}
	ip.ApplyDefaults()
	err = ip.Validate()
	return
}

// RunRelax loads the seed, relaxes it and stores the result image
func RunRelax(ctx context.Context, ip *InputParameters.HeatParameters, verbose bool, out io.Writer) (res *Heat2D.Result, err error) {
	var (
		cfg     Heat2D.Config
		g       *Heat2D.Grid
		s       *Heat2D.Solver
		palette utils.Palette
	)
	if cfg, err = ip.SolverConfig(verbose, out); err != nil {
		return
	}
	if palette, err = utils.NewPalette(ip.Palette); err != nil {
		return
	}
	if verbose {
		ip.Print(out)
	}
	if g, err = readfiles.LoadGrid(ip.Seed); err != nil {
		return
	}
	if s, err = Heat2D.NewSolver(cfg); err != nil {
		return
	}
	if res, err = s.Solve(ctx, g); err != nil {
		return
	}
	fmt.Fprintln(out, res.Summary())
	field := g.TemperatureField()
	if err = readfiles.WriteImage(ip.Output, utils.RenderField(field, res.TMin, res.TMax, palette)); err != nil {
		return
	}
	if ip.Preview > 0 {
		err = utils.PreviewASCII(out, field, res.TMin, res.TMax, ip.Preview)
	}
	return
}
