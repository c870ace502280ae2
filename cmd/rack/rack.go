package rack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/paularlott/cli"

	"github.com/martinsuchenak/invd/cmd/client"
	"github.com/martinsuchenak/invd/internal/model"
)

var errPosition = errors.New("--position must be 1 or more")

// Commands returns the rack subcommands
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:        "layout",
			Usage:       "Show the unit layout of a rack",
			Description: "Show which device occupies each unit of a rack",
			Arguments:   []cli.Argument{&cli.StringArg{Name: "rack", Required: true}},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				var layout model.RackLayout
				if err := client.FromCommand(cmd).Get(ctx, rackPath(cmd, "/layout"), &layout); err != nil {
					return err
				}
				printLayout(&layout)
				return nil
			},
		},
		{
			Name:        "validate",
			Usage:       "Check a rack for placement problems",
			Description: "Report overlapping devices and devices outside the rack",
			Arguments:   []cli.Argument{&cli.StringArg{Name: "rack", Required: true}},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				var result struct {
					Valid    bool     `json:"valid"`
					Problems []string `json:"problems"`
				}
				if err := client.FromCommand(cmd).Post(ctx, rackPath(cmd, "/validate"), nil, &result); err != nil {
					return err
				}
				if result.Valid {
					fmt.Println(text.FgGreen.Sprint("Rack layout is valid"))
					return nil
				}
				for _, p := range result.Problems {
					fmt.Println(text.FgRed.Sprint("- " + p))
				}
				return fmt.Errorf("rack has %d problems", len(result.Problems))
			},
		},
		{
			Name:        "add",
			Usage:       "Place a device in a rack",
			Description: "Place a device at a unit position of a rack",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "rack", Required: true},
				&cli.StringArg{Name: "device", Required: true},
			},
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "position", Usage: "First unit the device occupies"},
			},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.GetInt("position") < 1 {
					return errPosition
				}
				req := map[string]any{"device_id": cmd.GetStringArg("device"), "position": cmd.GetInt("position")}
				var layout model.RackLayout
				if err := client.FromCommand(cmd).Post(ctx, rackPath(cmd, "/devices"), req, &layout); err != nil {
					return err
				}
				printLayout(&layout)
				return nil
			},
		},
		{
			Name:  "move",
			Usage: "Move a device to another unit position",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "rack", Required: true},
				&cli.StringArg{Name: "device", Required: true},
			},
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "position", Usage: "New first unit"},
			},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.GetInt("position") < 1 {
					return errPosition
				}
				var layout model.RackLayout
				path := rackPath(cmd, "/devices/"+url.PathEscape(cmd.GetStringArg("device")))
				if err := client.FromCommand(cmd).Put(ctx, path, map[string]int{"position": cmd.GetInt("position")}, &layout); err != nil {
					return err
				}
				printLayout(&layout)
				return nil
			},
		},
		{
			Name:  "free",
			Usage: "Take a device out of its rack position",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "rack", Required: true},
				&cli.StringArg{Name: "device", Required: true},
			},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				path := rackPath(cmd, "/devices/"+url.PathEscape(cmd.GetStringArg("device")))
				var layout model.RackLayout
				if err := client.FromCommand(cmd).Do(ctx, "DELETE", path, nil, &layout); err != nil {
					return err
				}
				printLayout(&layout)
				return nil
			},
		},
		{
			Name:      "connections",
			Usage:     "List the physical connections of the devices in a rack",
			Arguments: []cli.Argument{&cli.StringArg{Name: "rack", Required: true}},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				var result struct {
					Connections []model.RackConnection `json:"connections"`
					Warnings    []string               `json:"warnings"`
				}
				if err := client.FromCommand(cmd).Get(ctx, rackPath(cmd, "/connections"), &result); err != nil {
					return err
				}
				if len(result.Connections) == 0 {
					client.Empty("connections")
				} else {
					t := client.NewTable("LINK", "SOURCE", "PORT", "TARGET", "PORT")
					for _, c := range result.Connections {
						t.AppendRow([]any{c.LinkName, c.SourceDevice, c.SourcePort, c.TargetDevice, c.TargetPort})
					}
					t.Render()
				}
				for _, w := range result.Warnings {
					fmt.Println(text.FgYellow.Sprint("Warning: " + w))
				}
				return nil
			},
		},
	}
}

func rackPath(cmd *cli.Command, suffix string) string {
	return "/api/racks/" + url.PathEscape(cmd.GetStringArg("rack")) + suffix
}

func printLayout(layout *model.RackLayout) {
	fmt.Printf("Rack %s: %d of %d units used (%.1f%%)\n", layout.RackName, layout.UsedUnits, layout.RackUnits, layout.Usage)

	names := make(map[string]string, len(layout.Devices))
	for _, d := range layout.Devices {
		names[d.ID] = d.Name + " [" + d.ClassName + "]"
	}

	t := client.NewTable("UNIT", "DEVICE")
	for _, row := range layout.Slots {
		label := text.FgHiBlack.Sprint("free")
		if row.DeviceID != "" {
			label = names[row.DeviceID]
		}
		t.AppendRow([]any{strconv.Itoa(row.Unit), label})
	}
	t.Render()

	for _, w := range layout.Warnings {
		fmt.Println(text.FgYellow.Sprint("Warning: " + w))
	}
}
