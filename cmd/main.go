package main

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/paideia-labs/paideia/internal/config"
	"github.com/paideia-labs/paideia/internal/handlers"
	"github.com/paideia-labs/paideia/internal/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found - using process environment")
	}

	setupLogging()

	svc, err := services.Initialize()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	r := setupRouter(handlers.NewHandler(svc))

	addr := ":" + config.GetPort()
	log.Info().Str("addr", addr).Msg("Server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("ListenAndServe error")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(config.GetEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !config.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func setupRouter(h *handlers.Handler) *mux.Router {
	r := mux.NewRouter()

	questions := r.PathPrefix("/v1/questions").Subrouter()
	questions.Use(handlers.RateLimit())
	questions.HandleFunc("", h.HandleAskQuestion).Methods("POST")
	questions.HandleFunc("/reply", h.HandleClarificationReply).Methods("POST")

	r.HandleFunc("/v1/progress/{request_id}", h.HandleProgress).Methods("GET")
	r.HandleFunc("/v1/stream", h.HandleStream)
	return r
}
