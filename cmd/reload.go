package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lscrefer/internal/cache"
	"github.com/sells-group/lscrefer/internal/config"
)

var reloadRefresh bool

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rebuild the program index, optionally refetching the service-area layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx, "resolve")
		if err != nil {
			return err
		}
		env, err := reloadIndex(ctx, cfg, store, reloadRefresh)
		if err != nil {
			_ = store.Close()
			return err
		}
		defer env.Close()

		return writeJSON(cmd.OutOrStdout(), env.Service.IndexStats())
	},
}

// reloadIndex builds the resolver on store. With refresh the cached
// service-area payload is dropped first, so the build itself refetches the
// layer once.
func reloadIndex(ctx context.Context, c *config.Config, store cache.Store, refresh bool) (*resolverEnv, error) {
	if refresh {
		if err := store.Delete(ctx, c.Cache.Key); err != nil {
			return nil, eris.Wrap(err, "reload: drop cached service areas")
		}
	}
	return newResolverEnv(ctx, c, store)
}

func init() {
	reloadCmd.Flags().BoolVar(&reloadRefresh, "refresh", false, "drop the cached service-area layer and fetch it again")
	rootCmd.AddCommand(reloadCmd)
}
