package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/RyanBlaney/sonido-chords/logging"
)

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("SONIDO_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("SONIDO_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format (text, json)",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "sonido-chords",
		Usage: "Chord timeline transcription from audio files and chromagrams",
		Flags: rootFlags(),
		Commands: []*cli.Command{
			analyzeCommand(),
			segmentCommand(),
			evaluateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logging.Error(err, "Application error")
		os.Exit(1)
	}
}
