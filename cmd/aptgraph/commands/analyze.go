package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aptgraph/aptgraph/sdk"
)

func newAnalyzeCmd() *cobra.Command {
	req := sdk.AnalyzeRequest{
		FeatureWeights:        []float64{1},
		FeatureOrderedWeights: []float64{1},
		MaxClusterSizeTemp:    10,
	}
	rankingWeights := []float64{0, 1, 0}
	var jsonOut bool
	var whitelistPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis query against a user or subnet",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SessionID = sessionID
			if len(rankingWeights) != 3 {
				return fmt.Errorf("--ranking-weights needs exactly 3 values, got %d", len(rankingWeights))
			}
			req.RankingWeights = [3]float64{rankingWeights[0], rankingWeights[1], rankingWeights[2]}
			if whitelistPath != "" {
				data, err := os.ReadFile(whitelistPath)
				if err != nil {
					return fmt.Errorf("reading --whitelist-path: %w", err)
				}
				req.WhiteOngo = string(data)
			}

			c, err := sdk.Dial(cmd.Context(), "stdio", serverCmd, serverArgs)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printAnalyzeResult(out, jsonOut)
		},
	}

	cmd.Flags().StringVar(&req.User, "user", "", "user IP or subnet sentinel (required)")
	cmd.Flags().Float64SliceVar(&req.FeatureWeights, "feature-weights", req.FeatureWeights, "per-feature fusion weights, must sum to 1")
	cmd.Flags().Float64SliceVar(&req.FeatureOrderedWeights, "feature-ordered-weights", req.FeatureOrderedWeights, "per-feature ordered weights, must sum to 1 (validated only; they do not change the result)")
	cmd.Flags().Float64Var(&req.PruneThresholdTemp, "prune-threshold", 0, "similarity prune threshold; edges below it are dropped (read as a z-score with --prune-z)")
	cmd.Flags().Float64Var(&req.MaxClusterSizeTemp, "max-cluster-size", req.MaxClusterSizeTemp, "largest cluster size kept (read as a z-score with --cluster-z)")
	cmd.Flags().BoolVar(&req.PruneZBool, "prune-z", false, "resolve the prune threshold from a z-score instead of a raw value")
	cmd.Flags().BoolVar(&req.ClusterZBool, "cluster-z", false, "resolve the max cluster size from a z-score instead of a raw value")
	cmd.Flags().BoolVar(&req.WhitelistBool, "whitelist", false, "drop whitelisted domains and any domain a selected user requested fewer than min-requests times")
	cmd.Flags().StringVar(&whitelistPath, "whitelist-path", "", "path to a whitelist file (one domain per line) to fold into suppression")
	cmd.Flags().Float64Var(&req.NumberRequests, "min-requests", 0, "minimum per-user request count for whitelist suppression")
	cmd.Flags().Float64SliceVar(&rankingWeights, "ranking-weights", rankingWeights, "[parents, children, requests] ranking weights")
	cmd.Flags().BoolVar(&req.AptSearch, "apt-search", false, "compute ground-truth .apt placement in the ranking")
	cmd.Flags().BoolVar(&req.StudyMode, "study", false, "study mode: return the ranking instead of the histograms")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw JSON result instead of a formatted summary")

	return cmd
}

func printAnalyzeResult(out *sdk.AnalyzeResult, jsonOut bool) error {
	if jsonOut {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(out.Stdout)
	for _, bucket := range out.Ranking {
		fmt.Printf("  %8.4f  %v\n", bucket.Index, bucket.Names)
	}
	if out.Apt != nil {
		if out.Apt.Found {
			fmt.Printf("\n.apt domains found at top %.2f%%: %v\n", out.Apt.TopPercent, out.Apt.AptDomains)
		} else {
			fmt.Println("\nno .apt domains present in this ranking")
		}
	}
	return nil
}
