package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gwentdecks/decks-server/internal/config"
	"github.com/gwentdecks/decks-server/internal/di/providers"
	"github.com/gwentdecks/decks-server/internal/domain"
	"github.com/gwentdecks/decks-server/internal/logger"
	"github.com/gwentdecks/decks-server/internal/search"
	"github.com/gwentdecks/decks-server/internal/service"
	"github.com/gwentdecks/decks-server/internal/store"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dataPath string
	backend  string
	logLevel string
}

// configArgs forwards the set flags to config.Load so env vars and .env
// files apply the same way they do for the server.
func (o *rootOptions) configArgs() []string {
	var args []string
	if o.dataPath != "" {
		args = append(args, "-data-path="+o.dataPath)
	}
	if o.backend != "" {
		args = append(args, "-store-backend="+o.backend)
	}
	if o.logLevel != "" {
		args = append(args, "-log-level="+o.logLevel)
	}
	return args
}

// env is everything a subcommand needs, opened from config.
type env struct {
	cfg  *config.Config
	log  *logger.Logger
	tree store.Tree
}

func (o *rootOptions) open(errOut io.Writer) (*env, error) {
	cfg, err := config.Load(o.configArgs())
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{
		Writer:      errOut,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})
	tree, err := providers.OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, tree: tree}, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "deckctl",
		Short:         "Inspect and seed the Gwent deck store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.dataPath, "data-path", "", "Base path for deck data (default: DATA_PATH or ~/GwentDecks/data)")
	root.PersistentFlags().StringVar(&opts.backend, "store-backend", "", "Store backend: badger or sqlite")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newInspectCmd(opts), newSeedCmd(opts), newReindexCmd(opts))
	return root
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var keysOnly bool

	cmd := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Dump every record under a tree path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				clean, err := store.CleanPath(args[0])
				if err != nil {
					return err
				}
				prefix = clean
			}

			e, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.tree.Close()

			return inspect(cmd.Context(), e.tree, prefix, keysOnly, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&keysOnly, "keys-only", false, "Print paths without values")
	return cmd
}

func inspect(ctx context.Context, tree store.Tree, prefix string, keysOnly bool, out io.Writer) error {
	count := 0
	for node, err := range tree.Walk(ctx, prefix) {
		if err != nil {
			return fmt.Errorf("walk %q: %w", prefix, err)
		}
		count++
		if keysOnly {
			fmt.Fprintf(out, "%s (v%d)\n", node.Path, node.Version)
			continue
		}
		var pretty any
		if err := json.Unmarshal(node.Value, &pretty); err != nil {
			fmt.Fprintf(out, "%s (v%d): <invalid json: %v>\n", node.Path, node.Version, err)
			continue
		}
		data, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Fprintf(out, "%s (v%d):\n%s\n", node.Path, node.Version, data)
	}
	fmt.Fprintf(out, "%d records\n", count)
	return nil
}

// demoDecks are created by seed. Cards are snapshots, so no catalog is needed.
var demoDecks = []struct {
	name    string
	faction domain.Faction
	leader  domain.CardDetails
	cards   []domain.CardDetails
}{
	{
		name:    "Foltest Reavers",
		faction: domain.FactionNorthernRealms,
		leader:  domain.CardDetails{IngameID: "foltest", Name: "Foltest", Faction: string(domain.FactionNorthernRealms), Group: "Leader"},
		cards: []domain.CardDetails{
			{IngameID: "reaver-hunter", Name: "Reaver Hunter", Faction: string(domain.FactionNorthernRealms), Group: "Bronze"},
			{IngameID: "blue-stripes-commando", Name: "Blue Stripes Commando", Faction: string(domain.FactionNorthernRealms), Group: "Bronze"},
		},
	},
	{
		name:    "Eredin Frost",
		faction: domain.FactionMonsters,
		leader:  domain.CardDetails{IngameID: "eredin", Name: "Eredin", Faction: string(domain.FactionMonsters), Group: "Leader"},
		cards: []domain.CardDetails{
			{IngameID: "foglet", Name: "Foglet", Faction: string(domain.FactionMonsters), Group: "Bronze"},
			{IngameID: "wild-hunt-hound", Name: "Wild Hunt Hound", Faction: string(domain.FactionMonsters), Group: "Bronze"},
		},
	},
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		userID  string
		copies  int
		publish bool
		week    int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo decks for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.tree.Close()

			index, err := search.NewSearchIndex(search.Options{DataPath: e.cfg.SearchIndexPath(), Logger: e.log.Logger})
			if err != nil {
				return err
			}
			defer index.Close()

			svc := service.NewDeckService(e.tree, index, nil, service.DeckServiceOptions{
				MaxTxnAttempts: e.cfg.Store.MaxTxnAttempts,
			}, e.log.Logger)

			return seed(cmd.Context(), svc, e.log, userID, copies, publish, week, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owner user ID")
	cmd.Flags().IntVar(&copies, "copies", 2, "Copies of each demo card")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish every seeded deck")
	cmd.Flags().IntVar(&week, "week", 0, "Week for published decks")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func seed(ctx context.Context, svc *service.DeckService, log *logger.Logger, userID string, copies int, publish bool, week int, out io.Writer) error {
	for _, demo := range demoDecks {
		leader := demo.leader
		deckID, err := svc.CreateDeck(ctx, userID, service.CreateDeckRequest{
			Name:    demo.name,
			Faction: string(demo.faction),
			Leader:  &leader,
		})
		if err != nil {
			return fmt.Errorf("create %q: %w", demo.name, err)
		}
		deckLog := log.WithDeck(userID, deckID)

		for _, card := range demo.cards {
			for range copies {
				if _, err := svc.AddCard(ctx, userID, deckID, card); err != nil {
					return fmt.Errorf("add %s to %q: %w", card.IngameID, demo.name, err)
				}
			}
		}
		deckLog.Debug("seeded deck", "cards", len(demo.cards)*copies)
		fmt.Fprintf(out, "created %s %q\n", deckID, demo.name)

		if publish {
			publicID, err := svc.PublishDeckByID(ctx, userID, deckID, week)
			if err != nil {
				return fmt.Errorf("publish %q: %w", demo.name, err)
			}
			fmt.Fprintf(out, "published %s as %s\n", deckID, publicID)
		}
	}
	return nil
}

func newReindexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the public deck search index from the tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.tree.Close()

			index, err := search.NewSearchIndex(search.Options{DataPath: e.cfg.SearchIndexPath(), Logger: e.log.Logger})
			if err != nil {
				return err
			}
			defer index.Close()

			svc := service.NewDeckService(e.tree, index, nil, service.DeckServiceOptions{}, e.log.Logger)
			n, err := svc.RebuildSearchIndex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d public decks\n", n)
			return nil
		},
	}
}
