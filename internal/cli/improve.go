package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/karasuemlak/backend/internal/api/handlers"
	"github.com/karasuemlak/backend/internal/application/services"
	"github.com/karasuemlak/backend/internal/bootstrap"
	"github.com/karasuemlak/backend/internal/domain/entities"
)

var (
	improveType  string
	improveID    string
	improveField string
	improveApply bool
)

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Improve one content field and print progress as it happens",
	Example: `  karasuctl improve --type listing --id 42 --field description
  karasuctl improve --type article --id 7 --field excerpt --apply`,
	RunE: runImprove,
}

func init() {
	improveCmd.Flags().StringVar(&improveType, "type", "", "content type (listing, article, news)")
	improveCmd.Flags().StringVar(&improveID, "id", "", "content id")
	improveCmd.Flags().StringVar(&improveField, "field", "", "field to improve")
	improveCmd.Flags().BoolVar(&improveApply, "apply", false, "write the improved text back when the job completes")
	_ = improveCmd.MarkFlagRequired("type")
	_ = improveCmd.MarkFlagRequired("id")
	_ = improveCmd.MarkFlagRequired("field")
	rootCmd.AddCommand(improveCmd)
}

func runImprove(cmd *cobra.Command, args []string) error {
	contentType, err := entities.ParseContentType(improveType)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = container.Close()
	}()

	out := cmd.OutOrStdout()
	emitter := handlers.NewRecordingEmitter()
	emitter.OnEvent = func(event entities.ProgressEvent) {
		fmt.Fprintln(out, formatEvent(event))
	}

	job, err := container.Improvement.Run(ctx, services.ImproveJobRequest{
		Ref:         entities.ContentRef{Type: contentType, ID: strings.TrimSpace(improveID), Field: improveField},
		RequestedBy: "karasuctl",
		Apply:       improveApply,
	}, emitter)
	if job != nil {
		fmt.Fprintln(out)
		printJob(out, job)
	}
	return err
}

// formatEvent renders one progress event as a single terminal line
func formatEvent(event entities.ProgressEvent) string {
	switch event.Type {
	case entities.ProgressEventComplete:
		if cmp, ok := event.Data.(*entities.ImprovementComparison); ok {
			return fmt.Sprintf("[100%%] tamamlandı: puan %d -> %d (+%d), kelime %d -> %d",
				cmp.Original.Score, cmp.Improved.Score, cmp.Improvement.ScoreIncrease,
				cmp.Original.WordCount, cmp.Improved.WordCount)
		}
		return "[100%] tamamlandı"
	case entities.ProgressEventError:
		return "[hata] " + event.Error
	default:
		progress := 0
		if event.Progress != nil {
			progress = *event.Progress
		}
		return fmt.Sprintf("[%3d%%] %-12s %s", progress, event.Step, event.Message)
	}
}

// printJob writes a job summary
func printJob(w io.Writer, job *entities.ImprovementJob) {
	fmt.Fprintf(w, "job:       %s\n", job.ID)
	fmt.Fprintf(w, "content:   %s/%s.%s\n", job.ContentType, job.ContentID, job.Field)
	fmt.Fprintf(w, "status:    %s (%s, %d%%)\n", job.Status, job.Step, job.Progress)
	fmt.Fprintf(w, "started:   %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	if job.QualityAnalysis != nil {
		fmt.Fprintf(w, "quality:   %d (%s)\n", job.QualityAnalysis.Score, job.QualityAnalysis.Grade)
	}
	if job.ImprovementResult != nil {
		fmt.Fprintf(w, "score:     %d -> %d\n", job.ImprovementResult.Score.Before, job.ImprovementResult.Score.After)
	}
	if job.ErrorMessage != nil {
		kind := ""
		if job.ErrorKind != nil {
			kind = *job.ErrorKind
		}
		fmt.Fprintf(w, "error:     [%s] %s\n", kind, *job.ErrorMessage)
	}
	if job.AppliedAt != nil {
		fmt.Fprintf(w, "applied:   %s\n", job.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	if job.ImprovedContent != nil {
		fmt.Fprintf(w, "\n%s\n", *job.ImprovedContent)
	}
}

func openContainer(ctx context.Context) (*bootstrap.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	noMigrations := false
	return bootstrap.New(ctx, cfg, bootstrap.Options{RunMigrations: &noMigrations})
}
