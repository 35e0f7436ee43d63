package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/admitml/predictgate/internal/client"
	"github.com/admitml/predictgate/internal/model"
)

var waitInterval time.Duration

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit a batch prediction job",
	Long: `Submit a batch of candidates for asynchronous scoring and print the job ID.

The file holds either {"inputs": [...]} or a bare JSON array of feature
vectors; "-" reads from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's lifecycle status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var resultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Fetch a completed job's predictions",
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

var waitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Poll a job until it finishes and print its results",
	Args:  cobra.ExactArgs(1),
	RunE:  runWait,
}

func init() {
	waitCmd.Flags().DurationVar(&waitInterval, "interval", time.Second, "polling interval")
	rootCmd.AddCommand(submitCmd, statusCmd, resultsCmd, waitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	vecs, err := readInputs(args[0])
	if err != nil {
		return err
	}

	id, err := api.SubmitBatch(context.Background(), vecs)
	if err != nil {
		return fmt.Errorf("submit batch: %w", err)
	}

	fmt.Println(id)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := api.JobStatus(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("job status: %w", err)
	}
	fmt.Println(status)
	return nil
}

func runResults(cmd *cobra.Command, args []string) error {
	res, err := api.Results(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("job results: %w", err)
	}
	printResults(res)
	return nil
}

func runWait(cmd *cobra.Command, args []string) error {
	res, err := api.Wait(context.Background(), args[0], waitInterval)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	printResults(res)
	return nil
}

func printResults(res *client.JobResults) {
	switch res.Status {
	case "completed":
		fmt.Printf("job %s completed, %d results\n", res.JobID, res.Total)
		for i, r := range res.Results {
			fmt.Printf("%4d  %.4f\n", i, r.ChanceOfAdmit)
		}
	case "failed":
		fmt.Printf("job %s failed: %s\n", res.JobID, res.Error)
	default:
		fmt.Printf("job %s is %s\n", res.JobID, res.Status)
	}
}

// readInputs loads feature vectors from a JSON file, accepting both the
// submit payload shape and a bare array.
func readInputs(path string) ([]model.FeatureVector, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	var wrapped struct {
		Inputs []model.FeatureVector `json:"inputs"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Inputs) > 0 {
		return wrapped.Inputs, nil
	}

	var vecs []model.FeatureVector
	if err := json.Unmarshal(data, &vecs); err != nil {
		return nil, fmt.Errorf("parse inputs: %w", err)
	}
	return vecs, nil
}
