package check

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/gaterace-service-go/log"
	"github.com/mpapenbr/gaterace-service-go/pkg/gate/fixture"
)

var (
	fixtureFile string
	watch       bool
)

func NewCheckGateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "build a gate from a fixture file and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkGate(cmd.OutOrStdout(), fixtureFile); err != nil {
				return err
			}
			if watch {
				return watchFixture(cmd.Context(), cmd.OutOrStdout(), fixtureFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&fixtureFile, "file", "f", "", "fixture file (yaml or json)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "check again whenever the file changes")
	//nolint:errcheck // flag exists
	cmd.MarkFlagRequired("file")
	return cmd
}

func checkGate(out io.Writer, path string) error {
	f, err := fixture.Load(path)
	if err != nil {
		return err
	}
	_, res, err := f.Build()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(res)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "--- %s\n%s", filepath.Base(path), data)
	return err
}

// watchFixture watches the directory of path since editors often replace
// the file instead of writing to it.
func watchFixture(ctx context.Context, out io.Writer, path string) error {
	logger := log.GetFromContext(ctx).Named("check")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("Watching fixture", log.String("file", abs))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	for {
		select {
		case <-sigChan:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := checkGate(out, abs); err != nil {
				logger.Warn("Invalid fixture", log.ErrorField(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", log.ErrorField(err))
		}
	}
}
