package cli

import (
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/db"
	"github.com/Skotchmaster/gedebog_store/internal/es"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
	"github.com/Skotchmaster/gedebog_store/internal/service/search"
	"github.com/Skotchmaster/gedebog_store/internal/storage"
)

var reindex bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default catalog into an empty products table",
	Long: `Seed inserts the four default chip flavors when the products table is
empty. With --reindex every product is also written to the search index.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&reindex, "reindex", true, "index all products into Elasticsearch when ES_URL is set")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, gdb, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		return err
	}

	objects, err := storage.NewDir(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		return err
	}
	hub := realtime.NewHub(logger)
	defer hub.Close()
	client := backend.New(gdb, hub, nil, objects)

	n, err := client.SeedProducts(ctx, backend.DefaultProducts())
	if err != nil {
		return err
	}
	logger.Info("catalog seeded", "inserted", n)

	if !reindex {
		return nil
	}
	esClient, err := es.NewClient(es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword}, logger)
	if err != nil {
		return err
	}
	ix := search.New(esClient, cfg.ESIndex)
	if ix == nil {
		return nil
	}

	products, err := client.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := ix.Put(ctx, p); err != nil {
			return err
		}
	}
	logger.Info("search index rebuilt", "index", cfg.ESIndex, "products", len(products))
	return nil
}
