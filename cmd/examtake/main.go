package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/journal"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/session"
)

// consoleNotifier prints non-blocking warnings to the terminal, the
// CLI's stand-in for a toast bar.
type consoleNotifier struct{}

func (consoleNotifier) Warn(msg string)  { fmt.Println("! " + msg) }
func (consoleNotifier) Error(msg string) { fmt.Println("!! " + msg) }

func main() {
	examFlag := flag.String("exam", "", "exam ID to start an attempt at")
	resultsFlag := flag.Bool("results", false, "list your results and exit")
	resumeFlag := flag.Bool("resume", false, "resume a journaled attempt")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	api := client.NewSessionClient(cfg, client.StaticToken(cfg.APIToken), log)
	ctx := context.Background()

	if *resultsFlag {
		listResults(ctx, api)
		return
	}

	// ─── Open Journal ──────────────────────────────────────────────────
	jnl, err := openJournal(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open answer journal")
	}
	if jnl != nil {
		defer jnl.Close()
	}

	ctrl := session.NewController(api, jnl, consoleNotifier{}, log)
	defer ctrl.Close()

	// ─── Resume or Start ───────────────────────────────────────────────
	if *resumeFlag {
		resumed, err := ctrl.Resume(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Resume failed")
		}
		if !resumed {
			fmt.Println("No attempt to resume.")
			return
		}
	} else {
		if *examFlag == "" {
			fmt.Println("Usage: examtake -exam <exam-id> | -resume | -results")
			os.Exit(2)
		}
		examID, err := uuid.Parse(*examFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid exam ID")
		}
		if _, err := ctrl.StartAttempt(ctx, examID); err != nil {
			fmt.Println("Could not start the exam: " + err.Error())
			os.Exit(1)
		}
	}

	runExam(ctx, ctrl)
}

func runExam(ctx context.Context, ctrl *session.Controller) {
	att := ctrl.Attempt()
	fmt.Printf("=== Attempt %d ===\n", att.AttemptNumber)
	fmt.Printf("Deadline: %s (in %s)\n\n", att.DeadlineAt.Format(time.RFC3339),
		time.Until(att.DeadlineAt).Round(time.Second))

	reader := bufio.NewReader(os.Stdin)

	for i, rec := range ctrl.Snapshot() {
		fmt.Printf("Question %d [%s]", i+1, rec.QuestionID)
		if rec.SelectedAnswer != "" {
			fmt.Printf(" (current: %q)", rec.SelectedAnswer)
		}
		fmt.Print("\nAnswer (enter to skip): ")

		started := time.Now()
		line, _ := reader.ReadString('\n')
		answer := strings.TrimSpace(line)
		if answer == "" {
			continue
		}

		spent := int(time.Since(started).Seconds())
		if err := ctrl.SubmitAnswer(ctx, rec.QuestionID, answer, spent); err != nil {
			// Answer is retained locally; finalization reconciles it.
			fmt.Println("  (sync failed: " + err.Error() + ")")
		}
	}

	var unanswered int
	for _, rec := range ctrl.Snapshot() {
		if rec.SelectedAnswer == "" {
			unanswered++
		}
	}
	if unanswered > 0 {
		fmt.Printf("\n%d question(s) unanswered.", unanswered)
	}
	fmt.Print("\nSubmit the exam now? [y/N]: ")
	line, _ := reader.ReadString('\n')
	if !strings.EqualFold(strings.TrimSpace(line), "y") {
		fmt.Println("Attempt left in progress; it will auto-submit at the deadline.")
		return
	}

	result, err := ctrl.FinalizeAttempt(ctx)
	if err != nil {
		fmt.Println("Submission failed: " + err.Error())
		fmt.Println("Your answers are safe; run with -resume to try again.")
		os.Exit(1)
	}

	printResult(result)
}

func printResult(r *model.Result) {
	fmt.Println("\n=== Result ===")
	fmt.Printf("Score: %.1f / %.1f (%.1f%%) — grade %s\n",
		r.ObtainedMarks, r.TotalMarks, r.Percentage, r.Grade)
	for i, a := range r.Answers {
		mark := "?"
		if a.IsCorrect != nil {
			if *a.IsCorrect {
				mark = "correct"
			} else {
				mark = "wrong"
			}
		}
		fmt.Printf("  Q%d: %q — %s\n", i+1, a.SelectedAnswer, mark)
	}
}

func listResults(ctx context.Context, api *client.SessionClient) {
	results, pg, err := api.ListResults(ctx, model.ListResultsParams{Page: 1, PerPage: 20})
	if err != nil {
		fmt.Println("Could not fetch results: " + err.Error())
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No results yet.")
		return
	}

	fmt.Printf("Results (page %d of %d):\n", pg.Page, pg.TotalPages)
	for _, r := range results {
		when := "-"
		if r.SubmittedAt != nil {
			when = r.SubmittedAt.Format(time.RFC3339)
		}
		fmt.Printf("  %-30s attempt %d  %5.1f%%  %s  %s\n",
			r.ExamTitle, r.AttemptNumber, r.Percentage, r.Grade, when)
	}
}

func openJournal(ctx context.Context, cfg *config.Config) (journal.Journal, error) {
	switch cfg.JournalBackend {
	case "redis":
		return journal.NewRedis(ctx, cfg.RedisURL)
	case "off":
		return nil, nil
	default:
		return journal.NewSQLite(cfg.JournalPath)
	}
}
