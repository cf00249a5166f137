package main

import (
	"context"
	"fmt"

	"github.com/ramkansal/fightgraph/internal/crawler"
	"github.com/ramkansal/fightgraph/internal/extractor"
	"github.com/ramkansal/fightgraph/internal/fetcher"
	"github.com/ramkansal/fightgraph/internal/output"
	"github.com/ramkansal/fightgraph/internal/reconcile"
	"github.com/ramkansal/fightgraph/internal/session"
	"github.com/ramkansal/fightgraph/internal/storage"
	"github.com/ramkansal/fightgraph/pkg/plugin"
	"github.com/spf13/cobra"
)

var (
	maxNodesArg int
	topLimitArg int
)

var singleCmd = &cobra.Command{
	Use:   "single <profile-url>",
	Short: "Crawl one fighter profile without following opponents.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd.Context(), singlePlan(args[0]))
	},
}

var recursiveCmd = &cobra.Command{
	Use:   "recursive <profile-url>",
	Short: "Crawl a fighter and then their opponents, breadth first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxNodes := cfg.NodeBudget()
		if cmd.Flags().Changed("max-nodes") {
			maxNodes = maxNodesArg
		}
		return runCrawl(cmd.Context(), recursivePlan(args[0], maxNodes))
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Crawl the top fighters listed on the ratings page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := cfg.TopCount()
		if cmd.Flags().Changed("limit") {
			limit = topLimitArg
		}
		return runCrawl(cmd.Context(), topPlan(limit, maxNodesArg))
	},
}

func init() {
	recursiveCmd.Flags().IntVarP(&maxNodesArg, "max-nodes", "n", 0, "maximum fighters to process, 0 for no limit (default from config)")
	topCmd.Flags().IntVarP(&maxNodesArg, "max-nodes", "n", 0, "maximum fighters to process, 0 for no limit")
	topCmd.Flags().IntVarP(&topLimitArg, "limit", "l", 0, "number of rated fighters to crawl (default from config)")
}

// crawlPlan is what one command asks the crawler to do.
type crawlPlan struct {
	mode     string
	seeds    []string
	maxNodes int
	follow   bool
	// top > 0 takes seeds from the ratings page
	top int
	// resume restores and saves the frontier state file
	resume bool
}

func singlePlan(url string) crawlPlan {
	return crawlPlan{mode: "single", seeds: []string{url}, maxNodes: 1}
}

// recursivePlan is the only plan that resumes. Single and top crawls
// leave the state file alone.
func recursivePlan(url string, maxNodes int) crawlPlan {
	return crawlPlan{mode: "recursive", seeds: []string{url}, maxNodes: maxNodes, follow: true, resume: true}
}

func topPlan(limit, maxNodes int) crawlPlan {
	return crawlPlan{mode: "top", maxNodes: maxNodes, top: limit}
}

// stateFile returns the frontier state file the plan uses, or "".
func (p crawlPlan) stateFile(configured string) string {
	if !p.resume {
		return ""
	}
	return configured
}

func runCrawl(ctx context.Context, plan crawlPlan) error {
	store, err := storage.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	extOpts := cfg.ExtractorOptions()
	extOpts.Logger = logger
	ext, err := extractor.New(extOpts)
	if err != nil {
		return fmt.Errorf("profile pattern: %w", err)
	}
	rec, err := reconcile.New(store, reconcile.DefaultOptions(), logger)
	if err != nil {
		return err
	}

	mode, fetchCfg, err := cfg.FetcherConfig()
	if err != nil {
		return err
	}
	sessCfg, err := cfg.SessionConfig()
	if err != nil {
		return err
	}
	crawlCfg, err := cfg.Crawler()
	if err != nil {
		return err
	}
	crawlCfg.FollowOpponents = plan.follow

	browser, err := fetcher.New(mode, fetchCfg)
	if err != nil {
		return fmt.Errorf("start %s fetcher: %w", mode, err)
	}

	var writer plugin.OutputWriter
	if cfg.Output != "" {
		writer = output.NewTextWriter(cfg.Output)
	}

	c := crawler.New(crawlCfg, crawler.Components{
		Browser:    browser,
		Session:    session.New(browser, sessCfg, logger),
		Extractor:  ext,
		Reconciler: rec,
		Writer:     writer,
		Logger:     logger,
	})
	defer c.Close()

	statePath := plan.stateFile(cfg.StateFile)
	if statePath != "" {
		snapshot, err := loadState(statePath)
		if err != nil {
			return err
		}
		if snapshot != nil {
			c.Restore(*snapshot)
			logger.Info("resuming crawl", "state", statePath,
				"queued", len(snapshot.Queue), "visited", len(snapshot.Visited))
		}
	}

	go func() {
		select {
		case <-interrupted:
			c.Stop()
		case <-ctx.Done():
		}
	}()

	printBanner()
	printPlan(plan, mode)

	seeds := plan.seeds
	if plan.top > 0 {
		seeds, err = c.DiscoverTop(ctx, cfg.RatingsURL, plan.top)
		if err != nil {
			return fmt.Errorf("ratings page: %w", err)
		}
		fmt.Printf("  %s %d fighters from %s\n\n", clr("cyan", "Seeds:"), len(seeds), cfg.RatingsURL)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range c.Events() {
			handleEvent(event)
		}
	}()

	sum, runErr := c.Run(ctx, seeds, plan.maxNodes)
	<-done

	printSummary(sum, statePath)

	if statePath != "" {
		if err := saveState(statePath, sum.Frontier); err != nil {
			logger.Warn("could not save crawl state", "state", statePath, "err", err)
		}
	}
	return runErr
}
