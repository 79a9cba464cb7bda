package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/scene-data/internal/storage"
	"github.com/yourorg/scene-data/internal/upload"
)

var uploadOpts = &struct {
	Revision string
	Path     string
	Split    bool
}{}

var uploadCmd = &cobra.Command{
	Use:   "upload <file|s3://bucket/key>",
	Short: "Upload a resource file and start processing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := fromContext(cmd)
		if err != nil {
			return err
		}
		blob, err := storage.OpenBlob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer blob.Close()

		a.log.Info("uploading",
			zap.String("file", blob.Name()),
			zap.Int64("size", blob.Size()),
			zap.String("contentType", blob.ContentType()),
			zap.Bool("remote", storage.IsRemote(args[0])))
		res := a.client.UploadResource(cmd.Context(), blob, func(f float64) {
			a.log.Debug("upload progress", zap.Float64("fraction", f))
		}, upload.Params{RevisionOf: uploadOpts.Revision, Path: uploadOpts.Path, Split: uploadOpts.Split})
		if res.Err != nil {
			return res.Err
		}
		fmt.Fprintln(os.Stdout, res.ProcessID)
		return nil
	},
}

func init() {
	flags := uploadCmd.Flags()
	flags.StringVar(&uploadOpts.Revision, "revision", "", "Id of the resource this file is a revision of.")
	flags.StringVar(&uploadOpts.Path, "path", "", "Destination folder.")
	flags.BoolVar(&uploadOpts.Split, "split", false, "Ask the service to split the model.")
}

var progressOpts = &struct {
	Position int64
	Wait     bool
	Interval time.Duration
}{}

var progressCmd = &cobra.Command{
	Use:   "progress <processID>",
	Short: "Show the progress of a processing job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := fromContext(cmd)
		if err != nil {
			return err
		}
		pos := progressOpts.Position
		for {
			p := a.client.ProcessProgress(cmd.Context(), args[0], pos)
			if p.Text != "" {
				fmt.Fprintln(os.Stdout, p.Text)
			}
			if p.Complete || !progressOpts.Wait {
				return nil
			}
			if p.Position > pos {
				pos = p.Position
			}
			select {
			case <-cmd.Context().Done():
				return fmt.Errorf("stopped waiting: %w", cmd.Context().Err())
			case <-time.After(progressOpts.Interval):
			}
		}
	},
}

func init() {
	flags := progressCmd.Flags()
	flags.Int64Var(&progressOpts.Position, "position", 0, "Log position to read from.")
	flags.BoolVar(&progressOpts.Wait, "wait", false, "Poll until the job completes.")
	flags.DurationVar(&progressOpts.Interval, "interval", 2*time.Second, "Polling interval with --wait.")
}
