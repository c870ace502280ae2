package sdh

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/paularlott/cli"

	"github.com/martinsuchenak/invd/cmd/client"
	"github.com/martinsuchenak/invd/internal/model"
)

var linkKinds = map[string]string{
	"transport": "transport-links",
	"container": "container-links",
	"tributary": "tributary-links",
}

// Commands returns the SDH subcommands
func Commands() []*cli.Command {
	return []*cli.Command{
		transportCommand(),
		containerCommand(),
		tributaryCommand(),
		deleteCommand(),
		structureCommand(),
		positionsCommand(),
		routesCommand(),
	}
}

func transportCommand() *cli.Command {
	return &cli.Command{
		Name:        "transport",
		Usage:       "Create a transport link between two ports",
		Description: "Create an STM transport link connecting two ports",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port-a", Usage: "First port ID", Required: true},
			&cli.StringFlag{Name: "port-b", Usage: "Second port ID", Required: true},
			&cli.StringFlag{Name: "class", Usage: "Transport link class (e.g., STM1)", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Link name", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]string{
				"port_a":     cmd.GetString("port-a"),
				"port_b":     cmd.GetString("port-b"),
				"link_class": cmd.GetString("class"),
				"name":       cmd.GetString("name"),
			}
			return createLink(ctx, cmd, "transport-links", req)
		},
	}
}

func containerCommand() *cli.Command {
	return &cli.Command{
		Name:        "container",
		Usage:       "Create a container link",
		Description: "Create a VC container between two equipment, carried at positions of transport links",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "a", Usage: "First equipment ID", Required: true},
			&cli.StringFlag{Name: "b", Usage: "Second equipment ID", Required: true},
			&cli.StringFlag{Name: "class", Usage: "Container class (e.g., VC4)", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Container name", Required: true},
			&cli.StringFlag{Name: "positions", Usage: "Positions as linkID:position,linkID:position", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return createEndpointLink(ctx, cmd, "container-links")
		},
	}
}

func tributaryCommand() *cli.Command {
	return &cli.Command{
		Name:        "tributary",
		Usage:       "Create a tributary link",
		Description: "Create a tributary link and the container that carries it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "a", Usage: "First port ID", Required: true},
			&cli.StringFlag{Name: "b", Usage: "Second port ID", Required: true},
			&cli.StringFlag{Name: "class", Usage: "Tributary link class (e.g., VC12TributaryLink)", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Link name", Required: true},
			&cli.StringFlag{Name: "positions", Usage: "Positions as linkID:position,linkID:position", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return createEndpointLink(ctx, cmd, "tributary-links")
		},
	}
}

func createEndpointLink(ctx context.Context, cmd *cli.Command, kind string) error {
	positions, err := ParsePositions(cmd.GetString("positions"))
	if err != nil {
		return err
	}
	req := map[string]any{
		"endpoint_a": cmd.GetString("a"),
		"endpoint_b": cmd.GetString("b"),
		"link_class": cmd.GetString("class"),
		"name":       cmd.GetString("name"),
		"positions":  positions,
	}
	return createLink(ctx, cmd, kind, req)
}

func createLink(ctx context.Context, cmd *cli.Command, kind string, req any) error {
	var link model.BusinessObject
	if err := client.FromCommand(cmd).Post(ctx, "/api/sdh/"+kind, req, &link); err != nil {
		return err
	}
	fmt.Printf("Created %s with ID %s\n", link, link.ID)
	return nil
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete an SDH link",
		Description: "Delete a transport, container or tributary link with everything it carries",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "kind", Required: true},
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			kind, ok := linkKinds[cmd.GetStringArg("kind")]
			if !ok {
				return fmt.Errorf("kind must be transport, container or tributary")
			}
			id := cmd.GetStringArg("id")
			if err := client.FromCommand(cmd).Delete(ctx, "/api/sdh/"+kind+"/"+url.PathEscape(id)); err != nil {
				return err
			}
			fmt.Printf("Deleted %s link %s\n", cmd.GetStringArg("kind"), id)
			return nil
		},
	}
}

func structureCommand() *cli.Command {
	return &cli.Command{
		Name:        "structure",
		Usage:       "Show the containers carried by a link",
		Description: "Show the containers of a transport link or the ones inside a high order container",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "kind", Required: true},
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			kind, ok := linkKinds[cmd.GetStringArg("kind")]
			if !ok || kind == "tributary-links" {
				return fmt.Errorf("kind must be transport or container")
			}
			var defs []model.SDHContainerLinkDefinition
			path := "/api/sdh/" + kind + "/" + url.PathEscape(cmd.GetStringArg("id")) + "/structure"
			if err := client.FromCommand(cmd).Get(ctx, path, &defs); err != nil {
				return err
			}
			if len(defs) == 0 {
				client.Empty("containers")
				return nil
			}
			t := client.NewTable("CONTAINER", "CLASS", "POSITIONS", "STRUCTURED")
			for _, def := range defs {
				t.AppendRow([]any{def.Container.Name, def.Container.ClassName, FormatPositions(def.Positions), def.Structured})
			}
			t.Render()
			return nil
		},
	}
}

func positionsCommand() *cli.Command {
	return &cli.Command{
		Name:        "positions",
		Usage:       "Show the timeslots of a link",
		Description: "Show which timeslots of a transport link or container are free",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "kind", Required: true},
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			kind, ok := linkKinds[cmd.GetStringArg("kind")]
			if !ok || kind == "tributary-links" {
				return fmt.Errorf("kind must be transport or container")
			}
			var slots []model.SDHSlot
			path := "/api/sdh/" + kind + "/" + url.PathEscape(cmd.GetStringArg("id")) + "/positions"
			if err := client.FromCommand(cmd).Get(ctx, path, &slots); err != nil {
				return err
			}
			t := client.NewTable("POSITION", "LABEL", "CONTAINER")
			for _, s := range slots {
				used := text.FgGreen.Sprint("free")
				if !s.Free() {
					used = s.Name
				}
				t.AppendRow([]any{s.Position, s.Label, used})
			}
			t.Render()
			return nil
		},
	}
}

func routesCommand() *cli.Command {
	return &cli.Command{
		Name:        "routes",
		Usage:       "Find routes between two equipment",
		Description: "Find paths between two network elements over transport or container links",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "a", Required: true},
			&cli.StringArg{Name: "b", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "via", Usage: "transport or container", DefaultValue: "transport"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			q := url.Values{}
			q.Set("a", cmd.GetStringArg("a"))
			q.Set("b", cmd.GetStringArg("b"))
			q.Set("via", cmd.GetString("via"))

			var routes []model.Route
			if err := client.FromCommand(cmd).Get(ctx, "/api/sdh/routes?"+q.Encode(), &routes); err != nil {
				return err
			}
			if len(routes) == 0 {
				client.Empty("routes")
				return nil
			}
			for i, r := range routes {
				hops := make([]string, len(r.Hops))
				for j, h := range r.Hops {
					hops[j] = h.Name
				}
				fmt.Printf("%d. %s\n", i+1, strings.Join(hops, " -> "))
			}
			return nil
		},
	}
}

// ParsePositions reads "linkID:position,linkID:position"
func ParsePositions(s string) ([]model.SDHPosition, error) {
	var positions []model.SDHPosition
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		link, pos, ok := strings.Cut(part, ":")
		if !ok || link == "" {
			return nil, fmt.Errorf("invalid position %q, expected linkID:position", part)
		}
		n, err := strconv.Atoi(pos)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid position number in %q", part)
		}
		positions = append(positions, model.SDHPosition{LinkID: link, Position: n})
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("at least one position is required")
	}
	return positions, nil
}

// FormatPositions renders positions the way ParsePositions reads them
func FormatPositions(positions []model.SDHPosition) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = p.LinkID + ":" + strconv.Itoa(p.Position)
	}
	return strings.Join(parts, ",")
}
