package main

import (
	"context"
	"fmt"

	"github.com/rlch/norm"
	"github.com/urfave/cli/v3"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "List node labels and relationship types in the database",
		Flags:  connectionFlags(),
		Action: runInspect,
	}
}

func runInspect(ctx context.Context, cmd *cli.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	sess, err := norm.NewDriverSession(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = sess.Close(ctx) }()

	labels, err := sess.Run(ctx, "CALL db.labels() YIELD label RETURN label ORDER BY label", nil)
	if err != nil {
		return err
	}

	fmt.Println("labels:")

	for _, row := range labels.Rows {
		if len(row) > 0 {
			fmt.Printf("  %v\n", row[0])
		}
	}

	relTypes, err := sess.Run(ctx,
		"MATCH ()-[r]->() RETURN type(r) AS relType, count(r) AS edges ORDER BY relType", nil)
	if err != nil {
		return err
	}

	fmt.Println("relationship types:")

	for _, row := range relTypes.Rows {
		if len(row) > 1 {
			fmt.Printf("  %v (%v)\n", row[0], row[1])
		}
	}

	return nil
}
