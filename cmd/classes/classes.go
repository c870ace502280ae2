package classes

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/invd/cmd/client"
	"github.com/martinsuchenak/invd/internal/metadata"
	"github.com/martinsuchenak/invd/internal/model"
)

// Commands returns the class hierarchy subcommands
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list",
			Usage: "List the classes of the hierarchy",
			Run: func(ctx context.Context, cmd *cli.Command) error {
				var classes []metadata.Class
				if err := client.FromCommand(cmd).Get(ctx, "/api/classes", &classes); err != nil {
					return err
				}
				t := client.NewTable("CLASS", "PARENT", "FLAGS", "CHILDREN")
				for _, c := range classes {
					t.AppendRow([]any{c.Name, c.Parent, classFlags(c), strings.Join(c.PossibleChildren, ", ")})
				}
				t.Render()
				return nil
			},
		},
		{
			Name:        "children",
			Usage:       "List the classes an object of a class may contain",
			Description: "List the possible children of a class, inherited ones included",
			Arguments:   []cli.Argument{&cli.StringArg{Name: "class", Required: true}},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				var children []string
				path := "/api/classes/" + url.PathEscape(cmd.GetStringArg("class")) + "/children"
				if err := client.FromCommand(cmd).Get(ctx, path, &children); err != nil {
					return err
				}
				if len(children) == 0 {
					client.Empty("possible children")
					return nil
				}
				for _, c := range children {
					fmt.Println(c)
				}
				return nil
			},
		},
		{
			Name:        "items",
			Usage:       "List or add the items of a list type",
			Description: "List the items of a list type class. With --add, create an item first",
			Arguments:   []cli.Argument{&cli.StringArg{Name: "class", Required: true}},
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "add", Usage: "Name of an item to create"},
			},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				c := client.FromCommand(cmd)
				path := "/api/classes/" + url.PathEscape(cmd.GetStringArg("class")) + "/items"
				if name := cmd.GetString("add"); name != "" {
					var item model.ListTypeItem
					if err := c.Post(ctx, path, map[string]string{"name": name}, &item); err != nil {
						return err
					}
					fmt.Printf("Created %s item %s\n", item.ClassName, item.Name)
				}

				var items []model.ListTypeItem
				if err := c.Get(ctx, path, &items); err != nil {
					return err
				}
				if len(items) == 0 {
					client.Empty("items")
					return nil
				}
				t := client.NewTable("ID", "NAME")
				for _, item := range items {
					t.AppendRow([]any{item.ID, item.Name})
				}
				t.Render()
				return nil
			},
		},
	}
}

func classFlags(c metadata.Class) string {
	var flags []string
	if c.Abstract {
		flags = append(flags, "abstract")
	}
	if c.ListType {
		flags = append(flags, "list type")
	}
	return strings.Join(flags, ", ")
}
