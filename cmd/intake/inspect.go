package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
	"github.com/zhouzirui/z-intake/backend/internal/service/ai"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <record.json>",
		Short: "Show a saved request and re-validate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}
			return inspectRecord(data, cmd.OutOrStdout())
		},
	}
}

func inspectRecord(data []byte, out io.Writer) error {
	record, err := intake.DecodeRecord(data)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	sch, err := schema.Lookup(record.RequestType)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "session:  %s\n", record.Metadata.SessionID)
	fmt.Fprintf(out, "created:  %s\n", record.Metadata.CreatedAt)
	fmt.Fprintf(out, "status:   %s\n\n", record.Metadata.Status)
	fmt.Fprintln(out, ai.TemplateSummary(record))

	if strings.Join(record.Requirements.Keys, ",") != strings.Join(sch.Names(), ",") {
		return fmt.Errorf("requirement keys %v do not match the %s schema %v",
			record.Requirements.Keys, sch.Name, sch.Names())
	}
	if err := schema.Validate(record.Requirements.Values, sch).Err(); err != nil {
		return fmt.Errorf("record does not validate: %w", err)
	}
	fmt.Fprintln(out, "\nrecord is valid")
	return nil
}
