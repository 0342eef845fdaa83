package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"faqbot/internal/config"
	"faqbot/internal/domain"
	"faqbot/internal/importer"
	"faqbot/internal/tui"
)

const usage = `Usage: faqbot [-config=faqbot.yaml] <command> [args]

Commands:
  serve            run the HTTP API
  chat             interactive terminal chat
  ask "text"       answer one utterance
  import file      load Q:/A: records from a text file and save
  refit            rebuild the vocabulary and save
`

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./faqbot.yaml or ~/.config/faqbot/config.yaml if not provided)")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := assemble(cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.close()
	a.log.WithField("config", cfgPath).Debug("config loaded")

	if err := run(a, args[0], args[1:]); err != nil {
		a.close()
		log.Fatal(err)
	}
}

func run(a *app, cmd string, args []string) error {
	ctx := context.Background()
	switch cmd {
	case "serve":
		return serve(ctx, a)
	case "chat":
		m := tui.New(a.svc, uuid.NewString(), a.requestTimeout())
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	case "ask":
		return ask(ctx, a, args)
	case "import":
		return importFile(ctx, a, args)
	case "refit":
		n := a.svc.Refit()
		a.log.WithField("vocab_size", n).Info("refit complete")
		return a.svc.Save(ctx)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func ask(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	k := fs.Int("k", 0, "number of ranked results (0 uses matcher.top_k)")
	fs.Parse(args)
	text := strings.Join(fs.Args(), " ")

	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout())
	defer cancel()
	env, err := a.svc.Ask(ctx, uuid.NewString(), text, *k)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	fmt.Println(bold(env.Answer))
	meta := string(env.Method)
	if env.MatchedID != nil {
		meta += fmt.Sprintf(" #%d score=%.3f", *env.MatchedID, env.Score)
	}
	if env.Rule != "" {
		meta += " rule=" + env.Rule
	}
	fmt.Printf("%s %s\n", faint("["+meta+"]"), bandColor(env.Confidence).Sprint(env.Confidence))
	for _, alt := range env.Alternatives {
		fmt.Println(faint(fmt.Sprintf("  also #%d (%.3f): %s", alt.ID, alt.Score, alt.Question)))
	}
	return nil
}

func bandColor(b domain.Band) *color.Color {
	switch b {
	case domain.BandHigh:
		return color.New(color.FgGreen, color.Bold)
	case domain.BandMedium:
		return color.New(color.FgYellow)
	case domain.BandLow:
		return color.New(color.FgHiYellow)
	default:
		return color.New(color.FgRed)
	}
}

func importFile(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("import: want exactly one file, got %d", len(args))
	}
	start := time.Now()
	entries, err := importer.ParseFile(args[0])
	if err != nil {
		return err
	}
	ids, err := a.svc.Import(entries)
	if err != nil {
		return fmt.Errorf("import %s: stored %d of %d records: %w", args[0], len(ids), len(entries), err)
	}
	if err := a.svc.Save(ctx); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("imported %d records from %s in %s\n", len(ids), args[0], time.Since(start).Round(time.Millisecond))
	return nil
}
