// voiced: the Charco Chicken phone-ordering voice agent.
//
// Accepts call media over websockets, transcribes caller speech,
// drives the ordering dialogue, and speaks responses back, with a
// dashboard API for the kitchen.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charcochicken/voiceagent/internal/config"
	"github.com/charcochicken/voiceagent/internal/log"
	"github.com/charcochicken/voiceagent/pkg/dialogue"
	"github.com/charcochicken/voiceagent/pkg/hub"
	"github.com/charcochicken/voiceagent/pkg/order"
	"github.com/charcochicken/voiceagent/pkg/session"
	"github.com/charcochicken/voiceagent/pkg/stt"
	"github.com/charcochicken/voiceagent/pkg/tts"
	"github.com/charcochicken/voiceagent/pkg/web"
)

var debug = flag.Bool("debug", false, "enable debug logging")

func main() {
	flag.Parse()

	cfg := config.Load()
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	if cfg.OpenAIAPIKey == "" {
		log.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	transcriber, err := buildTranscriber(cfg)
	if err != nil {
		log.Error("transcriber init failed", "error", err)
		os.Exit(1)
	}
	defer transcriber.Close()

	synthesizer, err := buildSynthesizer(cfg)
	if err != nil {
		log.Error("synthesizer init failed", "error", err)
		os.Exit(1)
	}
	defer synthesizer.Close()

	policy, err := buildPolicy(cfg)
	if err != nil {
		log.Error("policy init failed", "error", err)
		os.Exit(1)
	}

	book := order.NewBookWithFile(cfg.OrdersPath)
	defer book.Close()

	events := hub.New(log.L())

	orch, err := session.New(
		session.WithSTT(transcriber),
		session.WithPolicy(policy),
		session.WithTTS(synthesizer),
		session.WithOrders(book),
		session.WithEvents(events),
		session.WithLogger(log.L()),
		session.WithConfidenceThreshold(config.GetenvFloat("CONFIDENCE_THRESHOLD", session.DefaultConfidenceThreshold)),
		session.WithProviderTimeout(config.GetenvDuration("PROVIDER_TIMEOUT", session.DefaultProviderTimeout)),
		session.WithInactivityTimeout(config.GetenvDuration("INACTIVITY_TIMEOUT", session.DefaultInactivityTimeout)),
	)
	if err != nil {
		log.Error("orchestrator init failed", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(cfg.Port, orch, book, events, log.L())

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("voice agent up",
		"port", cfg.Port,
		"stt", cfg.STTKind,
		"policy", cfg.PolicyKind,
		"orders_path", cfg.OrdersPath,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	orch.Close()
	if err := server.Shutdown(); err != nil {
		log.Warn("shutdown error", "error", err)
	}
}

// buildTranscriber selects the speech-to-text provider from
// configuration. "chain" tries the realtime websocket first and falls
// back to Whisper.
func buildTranscriber(cfg *config.Config) (stt.Provider, error) {
	switch cfg.STTKind {
	case "realtime":
		return stt.NewRealtime(
			stt.WithAPIKey(cfg.OpenAIAPIKey),
			stt.WithLogger(log.L()),
		)
	case "chain":
		realtime, err := stt.NewRealtime(
			stt.WithAPIKey(cfg.OpenAIAPIKey),
			stt.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		whisper, err := stt.NewWhisper(
			stt.WithAPIKey(cfg.OpenAIAPIKey),
			stt.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		return stt.NewChainWithLogger(log.L(), realtime, whisper)
	default:
		return stt.NewWhisper(
			stt.WithAPIKey(cfg.OpenAIAPIKey),
			stt.WithLogger(log.L()),
		)
	}
}

// buildSynthesizer prefers ElevenLabs when its key is present and falls
// back through OpenAI speech on failure.
func buildSynthesizer(cfg *config.Config) (tts.Provider, error) {
	openai, err := tts.NewOpenAI(
		tts.WithAPIKey(cfg.OpenAIAPIKey),
		tts.WithLogger(log.L()),
	)
	if err != nil {
		return nil, err
	}

	if cfg.ElevenLabsAPIKey == "" || cfg.ElevenLabsVoice == "" {
		return openai, nil
	}

	eleven, err := tts.NewElevenLabs(
		tts.WithAPIKey(cfg.ElevenLabsAPIKey),
		tts.WithVoice(cfg.ElevenLabsVoice),
		tts.WithLogger(log.L()),
	)
	if err != nil {
		return nil, err
	}
	return tts.NewChainWithLogger(log.L(), eleven, openai)
}

// buildPolicy selects the dialogue policy from configuration.
func buildPolicy(cfg *config.Config) (dialogue.Policy, error) {
	switch cfg.PolicyKind {
	case "llm":
		return dialogue.NewLLM(cfg.OpenAIAPIKey, dialogue.WithLLMLogger(log.L()))
	default:
		return dialogue.NewRulesWithLogger(log.L()), nil
	}
}
