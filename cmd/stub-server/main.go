package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/stub"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("port", cfg.StubPort).Msg("Starting stub exam server")

	// ─── Build Server and Seed Demo Exam ───────────────────────────────
	srv := stub.NewServer(cfg.StubSecret, log)
	exam := demoExam()
	srv.Store().SeedExam(exam)

	token, err := stub.MintToken(cfg.StubSecret, "demo-candidate", 24*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to mint demo token")
	}
	log.Info().
		Str("exam_id", exam.ID.String()).
		Str("token", token).
		Msg("Demo exam seeded; point EXAM_API_TOKEN at this token")

	httpSrv := &http.Server{
		Addr:    ":" + cfg.StubPort,
		Handler: srv.Handler(),
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("Stub server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

func demoExam() *model.Exam {
	options, _ := json.Marshal([]string{"3", "4", "5", "6"})
	return &model.Exam{
		ID:              uuid.New(),
		Title:           "Demo Exam",
		DurationMinutes: 30,
		MaxAttempts:     3,
		Questions: []model.Question{
			{
				ID:            uuid.New(),
				QuestionText:  "What is 2+2?",
				QuestionType:  model.QuestionTypeMultipleChoice,
				Options:       options,
				CorrectAnswer: "4",
				Marks:         10,
				OrderNum:      1,
			},
			{
				ID:            uuid.New(),
				QuestionText:  "The sky is blue.",
				QuestionType:  model.QuestionTypeTrueFalse,
				CorrectAnswer: "true",
				Marks:         5,
				OrderNum:      2,
			},
			{
				ID:            uuid.New(),
				QuestionText:  "Name the capital of France.",
				QuestionType:  model.QuestionTypeShortAnswer,
				CorrectAnswer: "Paris",
				Marks:         10,
				OrderNum:      3,
			},
		},
	}
}
