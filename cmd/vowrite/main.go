package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/vowrite/vowrite/internal/config"
	"github.com/vowrite/vowrite/internal/history"
	. "github.com/vowrite/vowrite/internal/logging"
)

const version = "0.1.0"

type Globals struct {
	Config string `help:"Path to vowrite.toml (default: ./vowrite.toml, then ~/.vowrite/vowrite.toml)." type:"path"`
}

var cli struct {
	Globals

	Run     RunCmd     `cmd:"" help:"Start the dictation daemon."`
	History HistoryCmd `cmd:"" help:"Show recent dictations."`
	Stats   StatsCmd   `cmd:"" help:"Show cumulative usage."`
	Version VersionCmd `cmd:"" help:"Print the version."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("vowrite"),
		kong.Description("Voice dictation: hotkey to record, transcribe, polish and type into the focused app."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

// HistoryCmd lists stored dictations, newest first.
type HistoryCmd struct {
	Search string `help:"Only show dictations containing this text."`
	Limit  int    `default:"20" help:"Maximum number of dictations to show."`
}

func (c *HistoryCmd) Run(g *Globals) error {
	quietLogging(g)
	store, err := history.Open("")
	if err != nil {
		return err
	}
	defer store.Close()

	var records []history.Record
	if c.Search != "" {
		records, err = store.Search(c.Search, c.Limit)
	} else {
		records, err = store.List(c.Limit)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no dictations found")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %5.1fs  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.DurationSeconds, rec.PolishedText)
	}
	return nil
}

// StatsCmd prints the cumulative usage counters.
type StatsCmd struct{}

func (c *StatsCmd) Run(g *Globals) error {
	quietLogging(g)
	store, err := history.Open("")
	if err != nil {
		return err
	}
	defer store.Close()

	totals, err := store.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("dictations: %d\n", totals.TotalDictations)
	fmt.Printf("words:      %d\n", totals.TotalWords)
	fmt.Printf("audio time: %s\n", time.Duration(totals.TotalSeconds*float64(time.Second)).Round(time.Second))
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Printf("vowrite %s\n", version)
	return nil
}

// quietLogging keeps one-shot commands from interleaving log lines with
// their output.
func quietLogging(g *Globals) {
	Init(&Config{Level: LevelError})
	if cfg, err := config.Load(g.Config); err == nil && cfg.Logging.Level == "debug" {
		SetLevel(LevelDebug)
	}
}
