package object

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/invd/cmd/client"
	"github.com/martinsuchenak/invd/internal/model"
)

// Commands returns the object subcommands
func Commands() []*cli.Command {
	return []*cli.Command{
		listCommand(),
		getCommand(),
		createCommand(),
		updateCommand(),
		deleteCommand(),
		childrenCommand(),
		moveCommand(),
		relateCommand(),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List objects",
		Description: "List business objects, optionally filtered by class, parent or attribute",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "class", Usage: "Only objects of this class"},
			&cli.StringFlag{Name: "parent", Usage: "Only children of this object ID"},
			&cli.StringFlag{Name: "name", Usage: "Only objects with this name"},
			&cli.StringFlag{Name: "attribute", Usage: "Attribute name to filter on"},
			&cli.StringFlag{Name: "value", Usage: "Attribute value to filter on"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			q := url.Values{}
			for flag, param := range map[string]string{
				"class": "class", "parent": "parent_id", "name": "name", "attribute": "attribute", "value": "value",
			} {
				if v := cmd.GetString(flag); v != "" {
					q.Set(param, v)
				}
			}
			path := "/api/objects"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var objects []model.BusinessObject
			if err := client.FromCommand(cmd).Get(ctx, path, &objects); err != nil {
				return err
			}
			printObjects(objects)
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:        "get",
		Usage:       "Show an object",
		Description: "Show an object with its attributes and children",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.GetStringArg("id")
			c := client.FromCommand(cmd)

			var obj model.BusinessObject
			if err := c.Get(ctx, "/api/objects/"+url.PathEscape(id), &obj); err != nil {
				return err
			}
			var children []model.BusinessObject
			if err := c.Get(ctx, "/api/objects/"+url.PathEscape(id)+"/children", &children); err != nil {
				return err
			}
			printObject(&obj)
			if len(children) > 0 {
				fmt.Println("\nChildren:")
				printObjects(children)
			}
			return nil
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:        "create",
		Usage:       "Create an object",
		Description: "Create a business object of a class, optionally under a parent",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "class", Usage: "Class name", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Object name", Required: true},
			&cli.StringFlag{Name: "parent", Usage: "Parent object ID"},
			&cli.StringFlag{Name: "attrs", Usage: "Attributes as key=value,key=value"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			attrs, err := client.ParseAttributes(cmd.GetString("attrs"))
			if err != nil {
				return err
			}
			req := map[string]any{
				"class_name": cmd.GetString("class"),
				"name":       cmd.GetString("name"),
				"parent_id":  cmd.GetString("parent"),
				"attributes": attrs,
			}
			var obj model.BusinessObject
			if err := client.FromCommand(cmd).Post(ctx, "/api/objects", req, &obj); err != nil {
				return err
			}
			fmt.Printf("Created %s with ID %s\n", obj, obj.ID)
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:        "update",
		Usage:       "Update object attributes",
		Description: "Set attributes on an object. An empty value removes the attribute",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "attrs", Usage: "Attributes as key=value,key=value", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			attrs, err := client.ParseAttributes(cmd.GetString("attrs"))
			if err != nil {
				return err
			}
			var obj model.BusinessObject
			path := "/api/objects/" + url.PathEscape(cmd.GetStringArg("id"))
			if err := client.FromCommand(cmd).Put(ctx, path, map[string]any{"attributes": attrs}, &obj); err != nil {
				return err
			}
			printObject(&obj)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete an object",
		Description: "Delete an object. Objects with relationships need --force",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Also delete relationships and children"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.GetStringArg("id")
			path := "/api/objects/" + url.PathEscape(id)
			if cmd.GetBool("force") {
				path += "?force=true"
			}
			if err := client.FromCommand(cmd).Delete(ctx, path); err != nil {
				return err
			}
			fmt.Printf("Deleted object %s\n", id)
			return nil
		},
	}
}

func childrenCommand() *cli.Command {
	return &cli.Command{
		Name:  "children",
		Usage: "List the children of an object",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var children []model.BusinessObject
			path := "/api/objects/" + url.PathEscape(cmd.GetStringArg("id")) + "/children"
			if err := client.FromCommand(cmd).Get(ctx, path, &children); err != nil {
				return err
			}
			printObjects(children)
			return nil
		},
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:        "move",
		Usage:       "Move an object under another parent",
		Description: "Move an object. Omitting --parent makes it a root object",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "parent", Usage: "New parent object ID"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var obj model.BusinessObject
			path := "/api/objects/" + url.PathEscape(cmd.GetStringArg("id")) + "/move"
			if err := client.FromCommand(cmd).Post(ctx, path, map[string]string{"parent_id": cmd.GetString("parent")}, &obj); err != nil {
				return err
			}
			fmt.Printf("Moved %s\n", obj)
			return nil
		},
	}
}

func relateCommand() *cli.Command {
	return &cli.Command{
		Name:        "relate",
		Usage:       "Create a special relationship",
		Description: "Create a named relationship from one object to another",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source", Required: true},
			&cli.StringArg{Name: "target", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Relationship name", Required: true},
			&cli.StringFlag{Name: "props", Usage: "Properties as key=value,key=value"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			props, err := client.ParseAttributes(cmd.GetString("props"))
			if err != nil {
				return err
			}
			req := map[string]any{
				"name":       cmd.GetString("name"),
				"target_id":  cmd.GetStringArg("target"),
				"properties": props,
			}
			var rel model.SpecialRelationship
			path := "/api/objects/" + url.PathEscape(cmd.GetStringArg("source")) + "/relationships"
			if err := client.FromCommand(cmd).Post(ctx, path, req, &rel); err != nil {
				return err
			}
			fmt.Printf("Created relationship %s %s -> %s\n", rel.Name, rel.SourceID, rel.TargetID)
			return nil
		},
	}
}

func printObjects(objects []model.BusinessObject) {
	if len(objects) == 0 {
		client.Empty("objects")
		return
	}
	t := client.NewTable("ID", "NAME", "CLASS", "PARENT")
	for _, o := range objects {
		t.AppendRow([]any{o.ID, o.Name, o.ClassName, o.ParentID})
	}
	t.Render()
}

func printObject(obj *model.BusinessObject) {
	t := client.NewTable("KEY", "VALUE")
	t.AppendRow([]any{"id", obj.ID})
	t.AppendRow([]any{"class", obj.ClassName})
	t.AppendRow([]any{"name", obj.Name})
	if obj.ParentID != "" {
		t.AppendRow([]any{"parent", obj.ParentID})
	}
	names := make([]string, 0, len(obj.Attributes))
	for name := range obj.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow([]any{name, obj.Attributes[name]})
	}
	t.Render()
}
