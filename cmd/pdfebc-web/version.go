package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

// Build information populated at init() from debug.ReadBuildInfo().
var (
	Version   = "unknown"
	GoVersion = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
	Modified  bool
)

func init() {
	parseBuildInfo()
}

func parseBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	Version = info.Main.Version
	GoVersion = info.GoVersion

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			Commit = setting.Value
		case "vcs.time":
			BuildTime = setting.Value
		case "vcs.modified":
			Modified = setting.Value == "true"
		}
	}
}

func shortCommit() string {
	if len(Commit) > 12 {
		return Commit[:12]
	}
	return Commit
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "short",
			Usage: "Print the version only",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		if command.Bool("short") {
			fmt.Println(Version)
			return nil
		}

		fmt.Printf("pdfebc-web %s\n", Version)
		fmt.Printf("go: %s\n", GoVersion)
		if Commit != "unknown" {
			dirty := ""
			if Modified {
				dirty = " (dirty)"
			}
			fmt.Printf("commit: %s%s\n", shortCommit(), dirty)
		}
		if BuildTime != "unknown" {
			fmt.Printf("built: %s\n", BuildTime)
		}
		return nil
	},
}
