package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/etl"
	"github.com/raaihank/yt-etl/internal/trigger"
)

func newRunCommand(stdin io.Reader, stdout, stderr io.Writer, root *rootFlags) *cobra.Command {
	var eventPath string
	cmd := &cobra.Command{
		Use:   "run [s3://bucket/key ...]",
		Short: "Process files once and print the run result.",
		Long: `Process the given objects, or the records of a bucket notification
read from --event ("-" reads standard input), and print the run result as
JSON. Per-file failures are reported in the result; the command only fails
when the input cannot be understood.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := collectRefs(args, eventPath, stdin)
			if err != nil {
				return err
			}

			cfg, log, err := root.load(stderr)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc, err := initializeServices(cfg, log)
			if err != nil {
				return err
			}
			defer svc.cleanup(log)

			result := svc.pipeline.Run(cmd.Context(), refs)
			log.Info("Run finished",
				zap.String("run_id", result.RunID),
				zap.Int("files", len(result.Files)),
				zap.Int("failed", result.Count(etl.StatusFailed)))

			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVarP(&eventPath, "event", "e", "", "Bucket notification JSON to process, - for stdin.")
	return cmd
}

// collectRefs gathers the files named on the command line and in the event.
func collectRefs(args []string, eventPath string, stdin io.Reader) ([]etl.FileRef, error) {
	var refs []etl.FileRef
	for _, arg := range args {
		ref, err := etl.ParseFileRef(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if eventPath != "" {
		var body []byte
		var err error
		if eventPath == "-" {
			body, err = io.ReadAll(stdin)
		} else {
			body, err = os.ReadFile(eventPath)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		eventRefs, err := trigger.ParseNotification(body)
		if err != nil {
			return nil, err
		}
		refs = append(refs, eventRefs...)
	}

	if len(refs) == 0 {
		return nil, errors.New("nothing to process: pass s3://bucket/key arguments or --event")
	}
	return refs, nil
}
