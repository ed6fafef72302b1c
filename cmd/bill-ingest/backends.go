package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zombor/bill-ingest/internal/ingest"
	"github.com/zombor/bill-ingest/internal/scanning"
	"github.com/zombor/bill-ingest/internal/token"
)

func openTokenStore(ctx context.Context, cfg *config, opts []token.Option, cleanup *closers) (token.Store, error) {
	switch *cfg.tokenStore {
	case "memory":
		return token.NewMemoryStore(opts...), nil
	case "bolt":
		store, err := token.NewBoltStore(*cfg.tokenDB, opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing bolt token store: %w", err)
		}
		cleanup.add(store.Close)
		return store, nil
	case "redis":
		store, err := token.NewRedisStore(ctx, *cfg.redisURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing redis token store: %w", err)
		}
		cleanup.add(store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("invalid token store %q, valid: memory, bolt or redis", *cfg.tokenStore)
	}
}

func openRecognizer(ctx context.Context, cfg *config) (scanning.Recognizer, error) {
	switch *cfg.ocrEngine {
	case "tesseract":
		return scanning.NewTesseract(*cfg.ocrLanguage), nil
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		g, err := scanning.NewGemini(ctx, apiKey, *cfg.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return g, nil
	case "ollama":
		return scanning.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel), nil
	default:
		return nil, fmt.Errorf("invalid OCR engine %q, valid: tesseract, gemini or ollama", *cfg.ocrEngine)
	}
}

// openRecorder builds the recorder for the comma separated --records list.
// A single backend is used directly so record listing keeps working.
func openRecorder(ctx context.Context, cfg *config, cleanup *closers) (ingest.Recorder, error) {
	var recorders ingest.Recorders
	for _, name := range strings.Split(*cfg.records, ",") {
		switch strings.TrimSpace(name) {
		case "bolt":
			db, err := ingest.NewBoltDB(*cfg.recordsDB)
			if err != nil {
				return nil, fmt.Errorf("initializing records database: %w", err)
			}
			cleanup.add(db.Close)
			recorders = append(recorders, db)
		case "postgres":
			if *cfg.databaseURL == "" {
				return nil, fmt.Errorf("--database-url is required for postgres records")
			}
			pg, err := ingest.NewPostgres(ctx, *cfg.databaseURL)
			if err != nil {
				return nil, fmt.Errorf("initializing postgres records: %w", err)
			}
			cleanup.add(pg.Close)
			recorders = append(recorders, pg)
		case "amqp":
			pub, err := ingest.NewPublisher(*cfg.amqpURL, *cfg.amqpExchange)
			if err != nil {
				return nil, fmt.Errorf("initializing amqp publisher: %w", err)
			}
			cleanup.add(pub.Close)
			recorders = append(recorders, pub)
		case "":
		default:
			return nil, fmt.Errorf("invalid records backend %q, valid: bolt, postgres or amqp", name)
		}
	}

	switch len(recorders) {
	case 0:
		return nil, fmt.Errorf("at least one records backend is required")
	case 1:
		return recorders[0], nil
	default:
		return recorders, nil
	}
}
