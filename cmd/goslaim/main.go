package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/slaimbot/goslaim/internal/admin"
	"github.com/slaimbot/goslaim/internal/agents"
	"github.com/slaimbot/goslaim/internal/config"
	"github.com/slaimbot/goslaim/internal/coordinator"
	"github.com/slaimbot/goslaim/internal/intent"
	"github.com/slaimbot/goslaim/internal/llm"
	. "github.com/slaimbot/goslaim/internal/logging"
	"github.com/slaimbot/goslaim/internal/memory"
	"github.com/slaimbot/goslaim/internal/models"
	"github.com/slaimbot/goslaim/internal/sd"
	"github.com/slaimbot/goslaim/internal/telegram"
)

const version = "0.1.0"

var cli struct {
	Config   string           `help:"Path to the JSON config file." default:"config.json" type:"path"`
	Persona  string           `help:"Path to a TOML persona overlay." type:"path"`
	LogLevel string           `help:"Log level (debug|info|warn|error)." default:""`
	Version  kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("goslaim"),
		kong.Description("Telegram bot backed by a local Ollama server."),
		kong.Vars{"version": fmt.Sprintf("goslaim %s", version)},
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "goslaim: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	Init(&Config{
		Level:      ParseLevel(level),
		ShowCaller: true,
	})

	L_info("goslaim %s starting", version)

	persona, err := config.LoadPersona(cli.Persona)
	if err != nil {
		L_fatal("load persona: %v", err)
	}

	gateway, err := llm.New(llm.Config{
		URL:            cfg.Ollama.URL,
		Timeout:        cfg.OllamaTimeout(),
		LoadTTL:        cfg.LoadTTL(),
		VisionTTL:      cfg.VisionTTL(),
		MaxPromptChars: cfg.Ollama.MaxPromptChars,
	})
	if err != nil {
		L_fatal("create ollama client: %v", err)
	}

	selection, err := models.Load(cfg.StatePath("models.json"), gateway, cfg.Models.Main, cfg.Models.Vision)
	if err != nil {
		L_fatal("load model selection: %v", err)
	}

	admins, err := admin.Load(cfg.StatePath("admins.json"), cfg.Admin.Password)
	if err != nil {
		L_fatal("load admin state: %v", err)
	}

	mem := memory.New(cfg.Memory.MaxTurns, cfg.Memory.ContextTurns)

	think := agents.NewThink(gateway, selection, mem, persona.SystemPrompt)
	classifier := intent.New(intent.Replies{
		Creator:      persona.Replies.Creator,
		Name:         persona.Replies.Name,
		Greeting:     persona.Replies.Greeting,
		Capabilities: persona.Replies.Capabilities,
		RequestImage: "Пожалуйста, отправь изображение, и я его опишу! 📸",
		RequestFile:  "Пожалуйста, отправь документ, и я его прочитаю! 📄",
	}, intent.Keywords{
		Creator:      persona.Keywords.Creator,
		Name:         persona.Keywords.Name,
		Greeting:     persona.Keywords.Greeting,
		Capabilities: persona.Keywords.Capabilities,
		Search:       persona.Keywords.Search,
		Image:        persona.Keywords.Image,
		Document:     persona.Keywords.Document,
	})

	coord := coordinator.New(
		classifier,
		think,
		agents.NewImage(gateway, selection, mem),
		agents.NewDocument(think, cfg.Files.MaxDocumentBytes),
		agents.NewWebSearch(think, cfg.Search.Endpoint, cfg.Search.UserAgent, cfg.Search.MaxResults),
		agents.NewWebBrowse(think, cfg.Search.UserAgent),
	)

	diffusion := sd.New(sd.Config{
		URL:     cfg.SD.URL,
		Steps:   cfg.SD.Steps,
		Width:   cfg.SD.Width,
		Height:  cfg.SD.Height,
		Timeout: cfg.SDTimeout(),
	})

	bot, err := telegram.New(telegram.Deps{
		Config:    cfg,
		Persona:   persona,
		Coord:     coord,
		Memory:    mem,
		Admins:    admins,
		Selection: selection,
		Gateway:   gateway,
		Diffusion: diffusion,
		Prompter:  agents.NewPrompt(gateway, selection),
	})
	if err != nil {
		L_fatal("start telegram bot: %v", err)
	}

	stopKeepWarm, err := selection.StartKeepWarm(cfg.Ollama.KeepWarmSchedule)
	if err != nil {
		L_fatal("start keep-warm: %v", err)
	}
	defer stopKeepWarm()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		L_info("goslaim: received %s, shutting down", s)
		bot.Stop()
	}()

	L_info("goslaim ready")
	bot.Start()
	L_info("goslaim stopped")
}
