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
	"io"

	"github.com/spf13/cobra"
	"github.com/unixpickle/essentials"

	"github.com/notargets/gorelax/utils"
)

// PartitionCmd represents the partition command
var PartitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Print the rows each worker owns for a grid height",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		height, _ := cmd.Flags().GetInt("height")
		workers, _ := cmd.Flags().GetInt("workers")
		if cmd.Flags().Changed("row") {
			row, _ := cmd.Flags().GetInt("row")
			return PrintOwner(cmd.OutOrStdout(), height, workers, row)
		}
		return PrintPartition(cmd.OutOrStdout(), height, workers)
	},
}

func init() {
	rootCmd.AddCommand(PartitionCmd)
	PartitionCmd.Flags().IntP("height", "H", 0, "grid height including the two border rows")
	PartitionCmd.Flags().IntP("workers", "w", 1, "number of workers")
	PartitionCmd.Flags().IntP("row", "r", 0, "print only the worker owning this grid row")
	essentials.Must(PartitionCmd.MarkFlagRequired("height"))
}

func PrintPartition(w io.Writer, height, workers int) (err error) {
	var pm *utils.PartitionMap
	if pm, err = utils.NewPartitionMap(workers, height); err != nil {
		return
	}
	fmt.Fprintf(w, "%6s%12s%8s%6s%6s\n", "rank", "rows", "count", "up", "down")
	for np := 0; np < pm.ParallelDegree; np++ {
		rowMin, rowMax := pm.GetBucketRange(np)
		up, down := pm.Neighbors(np)
		fmt.Fprintf(w, "%6d%12s%8d%6d%6d\n", np,
			fmt.Sprintf("[%d,%d)", rowMin, rowMax), pm.GetBucketDimension(np), up, down)
	}
	return
}

// PrintOwner prints the worker that relaxes row, with the rows it owns
func PrintOwner(w io.Writer, height, workers, row int) (err error) {
	var pm *utils.PartitionMap
	if pm, err = utils.NewPartitionMap(workers, height); err != nil {
		return
	}
	rank, rowMin, rowMax := pm.GetBucket(row)
	if rank < 0 {
		return fmt.Errorf("row %d is not an interior row, expected [1,%d)", row, height-1)
	}
	fmt.Fprintf(w, "row %d: rank %d owns [%d,%d)\n", row, rank, rowMin, rowMax)
	return
}
