package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/admitml/predictgate/internal/model"
)

var predictVec model.FeatureVector

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score one candidate synchronously",
	Long: `Score a single candidate through the low-latency path.

Example:
  predictgate predict --gre 337 --toefl 118 --rating 4 --sop 4.5 --lor 4.5 --cgpa 9.65 --research`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

var predictResearch bool

func init() {
	predictCmd.Flags().Float64Var(&predictVec.GREScore, "gre", 0, "GRE test score (0-340)")
	predictCmd.Flags().Float64Var(&predictVec.TOEFLScore, "toefl", 0, "TOEFL test score (0-120)")
	predictCmd.Flags().Float64Var(&predictVec.UniversityRating, "rating", 1, "university rating (1-5)")
	predictCmd.Flags().Float64Var(&predictVec.SOP, "sop", 1, "statement of purpose strength (1-5)")
	predictCmd.Flags().Float64Var(&predictVec.LOR, "lor", 1, "letter of recommendation strength (1-5)")
	predictCmd.Flags().Float64Var(&predictVec.CGPA, "cgpa", 0, "cumulative GPA (0-10)")
	predictCmd.Flags().BoolVar(&predictResearch, "research", false, "has research experience")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	if predictResearch {
		predictVec.Research = 1
	}
	if err := predictVec.Validate(); err != nil {
		return err
	}

	chance, err := api.Predict(context.Background(), predictVec)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	fmt.Printf("chance_of_admit: %.4f\n", chance)
	return nil
}
