package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/ingest"
	"github.com/sells-group/dispatch-cli/internal/model"
)

var (
	ingestGeocode bool
	ingestSince   string
	ingestStation string
	ingestJSON    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion and print the incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		env, err := initServices(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		since, err := parseSince(ingestSince)
		if err != nil {
			return err
		}

		incidents, err := env.service.Scrape(ctx, ingest.Params{
			Geocode:     ingestGeocode,
			Since:       since,
			Station:     ingestStation,
			MaxGeocode:  cfg.Geocode.MaxPerRun,
			Concurrency: cfg.Geocode.Concurrency,
			OnProgress: func(stage string, done, total int) {
				fmt.Fprintf(os.Stderr, "\r%s %d/%d", stage, done, total)
				if done == total {
					fmt.Fprintln(os.Stderr)
				}
			},
		})
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		zap.L().Info("ingestion finished",
			zap.Int("incidents", len(incidents)),
			zap.String("station", ingestStation),
		)

		if ingestJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(incidents)
		}
		return printIncidentTable(incidents)
	},
}

// parseSince accepts an RFC3339 instant or a plain date.
func parseSince(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	loc, err := cfg.Region.Location()
	if err != nil {
		return nil, err
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &ts, nil
		}
	}
	return nil, eris.Errorf("ingest: cannot parse --since %q", s)
}

func printIncidentTable(incidents []model.Incident) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRECEIVED\tCATEGORY\tCALL TYPE\tADDRESS\tCOORDS")
	for _, inc := range incidents {
		addr := ""
		if inc.AddressRaw != nil {
			addr = *inc.AddressRaw
		}
		coords := ""
		if inc.Lat != nil && inc.Lon != nil {
			coords = fmt.Sprintf("%.5f,%.5f", *inc.Lat, *inc.Lon)
			if inc.Approximate {
				coords += " (approx)"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inc.ID,
			inc.ReceivedAt.Format("2006-01-02 15:04"),
			inc.Category,
			inc.CallType,
			addr,
			coords,
		)
	}
	return w.Flush()
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestGeocode, "geocode", false, "geocode addressed incidents")
	ingestCmd.Flags().StringVar(&ingestSince, "since", "", "only incidents received at or after this time (RFC3339 or YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestStation, "station", "", "restrict to one station code (CENT, COAS, SOUT)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(ingestCmd)
}
