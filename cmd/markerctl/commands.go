package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/location"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{out: stdout}
	f := &rootFlags{}

	root := &cobra.Command{
		Use:           "markerctl",
		Short:         "Client for the markerwatch API",
		Long:          `Keeps a local marker store in sync with the markerwatch API and queries it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), cmd, f)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&f.apiURL, "api", "", "API base URL (overrides MARKERS_API_URL)")
	root.PersistentFlags().StringVar(&f.cachePath, "cache", "", "SQLite snapshot path (overrides MARKERS_CACHE_PATH)")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging")
	root.PersistentFlags().BoolVar(&f.asJSON, "json", false, "Print JSON instead of a table")

	root.AddCommand(
		newListCmd(a, f),
		newNearbyCmd(a, f),
		newAddCmd(a, f),
		newConfirmCmd(a, f),
		newWatchCmd(a),
	)
	return root
}

func newListCmd(a *app, f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Refresh and list active markers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			active, err := a.sync.Refresh(cmd.Context())
			if err != nil {
				// Fall back to whatever the snapshot restored.
				a.log.Warn("refresh failed, showing cached markers", "error", err)
				active = a.store.ListActive(time.Now())
			}
			return printMarkers(a.out, active, f.asJSON)
		},
	}
}

func newNearbyCmd(a *app, f *rootFlags) *cobra.Command {
	var lat, lon, radius float64

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List active markers within a radius, nearest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.sync.Refresh(cmd.Context()); err != nil {
				a.log.Warn("refresh failed, searching cached markers", "error", err)
			}
			found, err := a.store.Nearby(domain.Location{Latitude: lat, Longitude: lon}, radius, time.Now())
			if err != nil {
				return err
			}
			return printMarkers(a.out, found, f.asJSON)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the search centre")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude of the search centre")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 5, "Search radius in km")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newAddCmd(a *app, f *rootFlags) *cobra.Command {
	var (
		lat, lon                              float64
		category, title, description, imageURI string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Report a marker at the given (or current) location",
		Long: `Report a marker. Without --lat/--lon the client has no location
source and the request fails with a permission error, as a device would when
location access is refused.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}

			var p location.Provider = location.Denied{}
			if cmd.Flags().Changed("lat") {
				p = location.Static{Latitude: lat, Longitude: lon}
			}

			m, err := a.sync.CreateHere(cmd.Context(), p, domain.Draft{
				Category:    c,
				Title:       title,
				Description: description,
				ImageURI:    imageURI,
			})
			if errors.Is(err, domain.ErrPermissionDenied) {
				return fmt.Errorf("location permission denied: pass --lat and --lon")
			}
			if err != nil {
				return err
			}
			return printMarkers(a.out, []domain.Marker{m}, f.asJSON)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Marker category: ice or observer")
	cmd.Flags().StringVar(&title, "title", "", "Short title")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&imageURI, "image", "", "Image URI to attach")
	_ = cmd.MarkFlagRequired("category")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	return cmd
}

func newConfirmCmd(a *app, f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a marker is still accurate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid marker id %q: %w", args[0], err)
			}
			m, err := a.client.Confirm(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.store.Add(m)
			return printMarkers(a.out, []domain.Marker{m}, f.asJSON)
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh on a fixed schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.RefreshInterval
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.log.Info("watching markers", "api", a.cfg.APIURL, "interval", interval)
			a.sync.Run(ctx, interval)
			return nil
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Refresh interval (overrides MARKERS_REFRESH_INTERVAL)")
	return cmd
}

func printMarkers(w io.Writer, ms []domain.Marker, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ms)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tLAT\tLON\tEXPIRES\tCONFIRMED\tTITLE")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%s\t%.5f\t%.5f\t%s\t%d\t%s\n",
			m.ID, m.Category, m.Latitude, m.Longitude,
			m.ExpiresAt.Local().Format(time.DateTime), m.ConfirmationsCount, m.Title)
	}
	return tw.Flush()
}
