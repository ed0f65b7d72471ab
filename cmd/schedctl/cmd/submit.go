package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
)

var submitFile string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a workflow manifest",
	Long: `Submit a workflow manifest to the scheduler.

The manifest is a YAML file of the form:

  name: slide-42
  jobs:
    - job_id: mask
      job_type: tissue_mask
      image_path: /data/slide-42.svs
      branch: main
    - job_id: cells
      job_type: cell_segmentation
      image_path: /data/slide-42.svs
      branch: main
      depends_on: [mask]`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "Workflow manifest file (required)")
	_ = submitCmd.MarkFlagRequired("file")
}

func runSubmit(_ *cobra.Command, _ []string) error {
	data, err := os.ReadFile(submitFile)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var spec workflow.Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	body, err := NewClient().Do(http.MethodPost, "/api/workflows", &spec)
	if err != nil {
		return err
	}
	return printJSON(body)
}
