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
	"fmt"
	"log"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gorelax/types"
)

var (
	cfgFile     string
	profileMode string
	profiler    interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gorelax",
	Short: "Steady state heat diffusion by checkerboard relaxation",
	Long: `
Relaxes a temperature field seeded from an image until the mean adjustment per
cell drops below a threshold, optionally splitting the rows across workers that
exchange boundary rows every iteration.

gorelax relax -F seed.png`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return startProfile(profileMode)
	},
}

// Execute runs the selected command and exits with the code matching its error
func Execute() {
	err := rootCmd.Execute()
	stopProfile()
	if err != nil {
		log.Printf("error: %v", err)
		os.Exit(types.ExitCode(err))
	}
}

func init() {
	log.SetFlags(0)
	log.SetPrefix("gorelax: ")
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gorelax.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileMode, "profile", "", "profile the run: cpu or mem")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Printf("error: %v", err)
			os.Exit(types.ExitUsage)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".gorelax")
	}
	viper.SetEnvPrefix("GORELAX")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Printf("using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		log.Printf("error: %v", err)
		os.Exit(types.ExitUsage)
	}
}

func startProfile(mode string) (err error) {
	switch mode {
	case "":
	case "cpu":
		profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
	case "mem":
		profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
	default:
		err = fmt.Errorf("unknown profile mode %q, have cpu or mem", mode)
	}
	return
}

func stopProfile() {
	if profiler != nil {
		profiler.Stop()
		profiler = nil
	}
}
