package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kbchat-be/internal/bootstrap"
	"kbchat-be/internal/config"
	"kbchat-be/internal/entity"
	"kbchat-be/internal/pkg/logger"
	"kbchat-be/pkg/events"
	pktNats "kbchat-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "ingest",
		Short:        "Push documents into the knowledge base",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	level := func() zapcore.Level {
		if verbose {
			return zapcore.DebugLevel
		}
		return zapcore.WarnLevel
	}

	root.AddCommand(newUploadCmd(level), newWatchCmd(level), newEventsCmd())
	return root
}

func newUploadCmd(level func() zapcore.Level) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Upload the given files, or every file in the docs folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if dir == "" {
				dir = cfg.Ingest.DocsPath
			}
			ingest := bootstrap.NewIngestService(cfg, logger.NewConsoleLogger(level()))
			ctx := cmd.Context()

			var results []entity.UploadResult
			if len(args) == 0 {
				infoColor.Printf("Uploading %s (tag %q)\n", dir, cfg.Ingest.ContainerTag)
				var err error
				results, err = ingest.UploadFolder(ctx, dir)
				if err != nil {
					return err
				}
			} else {
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						results = append(results, entity.UploadResult{FileName: path, Status: entity.UploadStatusFailure, Detail: err.Error()})
						continue
					}
					res, _ := ingest.UploadOne(ctx, data, filepath.Base(path))
					results = append(results, res)
				}
			}

			failed := 0
			for _, res := range results {
				printResult(res)
				if !res.Succeeded() {
					failed++
				}
			}
			fmt.Printf("Processed %d files, %d failed\n", len(results), failed)
			if failed > 0 {
				return fmt.Errorf("%d uploads failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "folder to upload (defaults to DOCS_PATH)")
	return cmd
}

func newWatchCmd(level func() zapcore.Level) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Upload files as they are created or changed in the docs folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if dir == "" {
				dir = cfg.Ingest.DocsPath
			}
			ingest := bootstrap.NewIngestService(cfg, logger.NewConsoleLogger(level()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			infoColor.Printf("Watching %s, press Ctrl+C to stop\n", dir)
			return ingest.Watch(ctx, dir, printResult)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "folder to watch (defaults to DOCS_PATH)")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail chat and ingestion events from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.App.NatsURL == "" {
				return fmt.Errorf("NATS_URL is not set")
			}
			sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = sub.Subscribe(ctx, pktNats.SubjectPrefix+".>", durable, func(_ context.Context, event events.Event) error {
				c := okColor
				if event.EventType() == events.TypeChatFailed || event.EventType() == events.TypeIngestionFailed {
					c = failColor
				}
				c.Printf("%s ", event.EventType())
				fmt.Printf("%s %v\n", event.Timestamp().Format("15:04:05"), event.Payload())
				return nil
			})
			if err != nil {
				return err
			}

			infoColor.Println("Listening for events, press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&durable, "durable", "kbchat-ingest-cli", "durable consumer name")
	return cmd
}

func printResult(res entity.UploadResult) {
	if res.Succeeded() {
		okColor.Print("✓ ")
		fmt.Printf("%s %s\n", res.FileName, res.DocumentID)
		return
	}
	failColor.Print("✗ ")
	fmt.Printf("%s: %s\n", res.FileName, res.Detail)
}
