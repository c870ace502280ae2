package sync

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/paularlott/cli"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/martinsuchenak/invd/cmd/client"
	"github.com/martinsuchenak/invd/internal/model"
)

// findingFile is one entry of a findings file. JSON files parse too.
type findingFile struct {
	Type             string `yaml:"type"`
	Description      string `yaml:"description"`
	ExtraInformation string `yaml:"extra_information"`
}

// Commands returns the sync subcommands
func Commands() []*cli.Command {
	return []*cli.Command{
		executeCommand(),
		deviceCommand(),
		runsCommand(),
		runCommand(),
	}
}

func executeCommand() *cli.Command {
	return &cli.Command{
		Name:        "execute",
		Usage:       "Apply findings from a file",
		Description: "Apply a YAML or JSON list of sync findings to the inventory",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			findings, err := LoadFindings(cmd.GetStringArg("file"))
			if err != nil {
				return err
			}
			var results []model.SyncResult
			if err := client.FromCommand(cmd).Post(ctx, "/api/sync/execute", map[string]any{"findings": findings}, &results); err != nil {
				return err
			}
			printResults(results)
			return nil
		},
	}
}

func deviceCommand() *cli.Command {
	return &cli.Command{
		Name:        "device",
		Usage:       "Synchronize one device",
		Description: "Poll a device through the configured source and apply what changed",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "prompt-community", Usage: "Ask for the SNMP community instead of using the stored one"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]string{}
			if cmd.GetBool("prompt-community") {
				community, err := promptSecret("SNMP community: ")
				if err != nil {
					return err
				}
				req["community"] = community
			}

			var run model.SyncRun
			path := "/api/sync/devices/" + url.PathEscape(cmd.GetStringArg("id"))
			if err := client.FromCommand(cmd).Post(ctx, path, req, &run); err != nil {
				return err
			}
			printRun(&run)
			return nil
		},
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent sync runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "device", Usage: "Only runs of this device ID"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", DefaultValue: 20},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			q := url.Values{}
			if d := cmd.GetString("device"); d != "" {
				q.Set("device_id", d)
			}
			if n := cmd.GetInt("limit"); n > 0 {
				q.Set("limit", strconv.Itoa(n))
			}
			var runs []model.SyncRun
			if err := client.FromCommand(cmd).Get(ctx, "/api/sync/runs?"+q.Encode(), &runs); err != nil {
				return err
			}
			if len(runs) == 0 {
				client.Empty("sync runs")
				return nil
			}
			t := client.NewTable("ID", "DEVICE", "SOURCE", "STARTED", "SUCCESS", "WARNING", "ERROR")
			for _, r := range runs {
				t.AppendRow([]any{r.ID, r.DeviceID, r.Source, r.StartedAt.Local().Format(time.DateTime), r.Successes, r.Warnings, r.Errors})
			}
			t.Render()
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Show the results of a sync run",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id", Required: true}},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var run model.SyncRun
			if err := client.FromCommand(cmd).Get(ctx, "/api/sync/runs/"+url.PathEscape(cmd.GetStringArg("id")), &run); err != nil {
				return err
			}
			printRun(&run)
			return nil
		},
	}
}

// LoadFindings reads a list of findings from a YAML or JSON file
func LoadFindings(path string) ([]model.SyncFinding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []findingFile
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	findings := make([]model.SyncFinding, len(entries))
	for i, e := range entries {
		findings[i] = model.SyncFinding{Type: e.Type, Description: e.Description, ExtraInformation: e.ExtraInformation}
	}
	return findings, nil
}

func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func printRun(run *model.SyncRun) {
	fmt.Printf("Sync run %s of device %s via %s\n", run.ID, run.DeviceID, run.Source)
	if run.Error != "" {
		fmt.Println(text.FgRed.Sprint("Error: " + run.Error))
	}
	printResults(run.Results)
	fmt.Printf("%d succeeded, %d warnings, %d errors\n", run.Successes, run.Warnings, run.Errors)
}

func printResults(results []model.SyncResult) {
	if len(results) == 0 {
		client.Empty("results")
		return
	}
	t := client.NewTable("RESULT", "ACTION", "DETAIL")
	for _, r := range results {
		t.AppendRow([]any{colorResult(r.Type), r.ActionDescription, r.ActionResult})
	}
	t.Render()
}

func colorResult(kind string) string {
	switch kind {
	case model.ResultSuccess:
		return text.FgGreen.Sprint(kind)
	case model.ResultWarning:
		return text.FgYellow.Sprint(kind)
	default:
		return text.FgRed.Sprint(kind)
	}
}
