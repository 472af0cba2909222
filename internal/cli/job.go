package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/karasuemlak/backend/internal/domain/entities"
)

var (
	jobListType  string
	jobListID    string
	jobListLimit int
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect improvement jobs",
}

var jobShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one improvement job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = container.Close()
		}()

		job, err := container.Improvement.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJob(cmd.OutOrStdout(), job)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest jobs of one content entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = container.Close()
		}()

		jobs, err := container.Improvement.ListJobs(cmd.Context(), entities.ContentType(jobListType), jobListID, jobListLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFIELD\tSTATUS\tPROGRESS\tSTARTED")
		for _, job := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n", job.ID, job.Field, job.Status, job.Progress, job.StartedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	jobListCmd.Flags().StringVar(&jobListType, "type", "", "content type (listing, article, news)")
	jobListCmd.Flags().StringVar(&jobListID, "id", "", "content id")
	jobListCmd.Flags().IntVar(&jobListLimit, "limit", 20, "maximum number of jobs")
	_ = jobListCmd.MarkFlagRequired("type")
	_ = jobListCmd.MarkFlagRequired("id")

	jobCmd.AddCommand(jobShowCmd, jobListCmd)
	rootCmd.AddCommand(jobCmd)
}
