package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

var (
	geocodeArea     string
	geocodeStation  string
	geocodeProvider string
	geocodeNoCache  bool
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve a single address to coordinates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		resolver := buildResolver(st)
		address := args[0]
		result := resolver.Resolve(ctx, &address, geocodeArea, geocode.ResolveOpts{
			NoCache:       geocodeNoCache,
			Station:       geocodeStation,
			ForceProvider: geocodeProvider,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeArea, "area", "", "area name used in the query and for centroid bias")
	geocodeCmd.Flags().StringVar(&geocodeStation, "station", "", "station code used for centroid bias")
	geocodeCmd.Flags().StringVar(&geocodeProvider, "provider", "", "call exactly this provider (apple_maps, census, nominatim)")
	geocodeCmd.Flags().BoolVar(&geocodeNoCache, "no-cache", false, "bypass both cache tiers")
	rootCmd.AddCommand(geocodeCmd)
}
