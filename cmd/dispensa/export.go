package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/dispensa"
	"github.com/aretw0/dispensa/pkg/backup"
)

var exportTo string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every list and recipe to a file or an S3 bucket",
	Long: `Export writes a backup of the signed-in user's collections.

  --to backup.yaml               local file (YAML or JSON by extension)
  --to file:///srv/backup.json   same, as a URL
  --to s3://bucket/key.yaml      S3 object (region and endpoint from config)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := backup.ParseTarget(exportTo)
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *dispensa.Runtime) error {
			sink, err := openSink(ctx, rt, target)
			if err != nil {
				return err
			}
			a := backup.NewArchive(rt.App.View().Session, rt.App.Notes.All(), rt.App.Recipes.All(), time.Now())
			if err := backup.Export(ctx, sink, target.Key, a); err != nil {
				return err
			}
			fmt.Printf("Exported %d lists and %d recipes to %s\n", len(a.Notes), len(a.Recipes), exportTo)
			return nil
		})
	},
}

func openSink(ctx context.Context, rt *dispensa.Runtime, t backup.Target) (backup.Sink, error) {
	if t.Scheme != "s3" {
		return backup.FileSink{}, nil
	}
	s3cfg := rt.Config.Backup.S3
	return backup.OpenS3(ctx, backup.S3Config{
		Bucket:    t.Bucket,
		Region:    s3cfg.Region,
		Endpoint:  s3cfg.Endpoint,
		PathStyle: s3cfg.PathStyle,
	})
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Destination: path, file:// or s3:// URL")
	_ = exportCmd.MarkFlagRequired("to")
}
