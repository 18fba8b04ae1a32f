package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orneryd/tmengine/pkg/config"
	"github.com/orneryd/tmengine/pkg/fixture"
	"github.com/orneryd/tmengine/pkg/ingest"
	"github.com/orneryd/tmengine/pkg/topicmap"
)

// loaded is one fixture file in its own topic map.
type loaded struct {
	path    string
	tm      *topicmap.TopicMap
	summary ingest.Summary
}

func runLoad(cmd *cobra.Command, args []string) error {
	into, _ := cmd.Flags().GetString("into")
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sys := topicmap.NewSystem(topicmap.OptionsFromConfig(cfg.Engine, logger))
	defer sys.Close()

	maps, err := loadFiles(cmd.Context(), sys, cfg.Engine, logger, args)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, l := range maps {
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.path, l.tm.BaseLocator().Value(), l.tm.Stats())
	}
	if into == "" {
		return nil
	}

	target, err := mergeInto(sys, into, maps)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "merged\t%s\t%s\n", target.BaseLocator().Value(), target.Stats())
	return nil
}

// loadFiles loads every path into its own topic map, in parallel. Each
// goroutine owns the topic map it builds. Results keep the order of paths.
func loadFiles(ctx context.Context, sys *topicmap.System, cfg config.EngineConfig, logger *zap.Logger, paths []string) ([]loaded, error) {
	out := make([]loaded, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := fixture.ReadFile(path)
			if err != nil {
				return err
			}
			opts := ingest.OptionsFromConfig(cfg, logger.With(zap.String("file", path)))
			tm, summary, err := fixture.Load(sys, doc, fallbackBase(cfg.DefaultBase, path), opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out[i] = loaded{path: path, tm: tm, summary: summary}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fallbackBase derives a base locator for a fixture without one from the
// file name, so several such files can be loaded side by side.
func fallbackBase(defaultBase, path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if !strings.HasSuffix(defaultBase, "/") {
		defaultBase += "/"
	}
	return defaultBase + stem
}

// mergeInto merges every loaded map into a new topic map with base locator
// base, in load order.
func mergeInto(sys *topicmap.System, base string, maps []loaded) (*topicmap.TopicMap, error) {
	if slices.ContainsFunc(maps, func(l loaded) bool { return l.tm.BaseLocator().Value() == base }) {
		return nil, fmt.Errorf("--into %s: %w", base, topicmap.ErrMapExists)
	}
	target, err := sys.CreateTopicMap(base)
	if err != nil {
		return nil, err
	}
	for _, l := range maps {
		if err := target.MergeIn(l.tm); err != nil {
			return nil, fmt.Errorf("merging %s: %w", l.path, err)
		}
	}
	return target, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sys := topicmap.NewSystem(topicmap.OptionsFromConfig(cfg.Engine, logger))
	defer sys.Close()

	maps, err := loadFiles(cmd.Context(), sys, cfg.Engine, logger, args)
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), maps[0])
	return nil
}

func printStats(w io.Writer, l loaded) {
	tm := l.tm
	fmt.Fprintf(w, "base: %s\n", tm.BaseLocator().Value())
	fmt.Fprintf(w, "constructs: %s\n", tm.Stats())
	fmt.Fprintf(w, "ingest: converted=%d merges=%d duplicates=%s\n",
		l.summary.Converted, l.summary.Merges, l.summary.Duplicates)

	types := tm.TypeInstanceIndex()
	printKeys(w, "topic types", types.TopicTypes(), func(t *topicmap.Topic) int { return len(types.Topics(t)) })
	printKeys(w, "association types", types.AssociationTypes(), func(t *topicmap.Topic) int { return len(types.Associations(t)) })
	printKeys(w, "occurrence types", types.OccurrenceTypes(), func(t *topicmap.Topic) int { return len(types.Occurrences(t)) })

	scoped := tm.ScopedIndex()
	printKeys(w, "name themes", scoped.NameThemes(), func(t *topicmap.Topic) int { return len(scoped.Names(t)) })
}

func printKeys(w io.Writer, title string, keys []*topicmap.Topic, count func(*topicmap.Topic) int) {
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%d\n", k, count(k))
	}
}
