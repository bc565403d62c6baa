package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rhymeas/tripweaver/config"
	"github.com/rhymeas/tripweaver/internal/container"
	"github.com/rhymeas/tripweaver/internal/types"
)

var (
	fromArg       string
	toArg         string
	viaArg        []string
	modeArg       string
	preferenceArg string
	budgetArg     string
	interestsArg  []string
	hoursArg      float64
	dateArg       string
	jsonFlag      bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a trip from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found or error loading:", err)
		}
		cfg, err := config.InitConfig()
		if err != nil {
			return fmt.Errorf("init config: %w", err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

		ctx := cmd.Context()
		deps, err := container.NewContainer(ctx, &cfg, logger)
		if err != nil {
			return fmt.Errorf("init engine: %w", err)
		}
		defer deps.Close()

		trip := types.TripContext{
			Origin:                fromArg,
			Destination:           toArg,
			IntermediateStops:     viaArg,
			TransportMode:         types.TransportProfile(modeArg),
			RoutePreference:       types.RoutePreference(preferenceArg),
			BudgetTier:            types.BudgetTier(budgetArg),
			InterestTags:          interestsArg,
			MaxDrivingHoursPerDay: hoursArg,
		}
		trip.StartDate, err = parseStartDate(dateArg)
		if err != nil {
			return err
		}

		result, err := deps.ItineraryService.Generate(ctx, trip)
		if err != nil {
			return fmt.Errorf("plan trip: %w", err)
		}

		if jsonFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printItinerary(result)
		return nil
	},
}

func parseStartDate(arg string) (time.Time, error) {
	if arg == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse("2006-01-02", arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return day, nil
}

func printItinerary(it *types.Itinerary) {
	fmt.Printf("%s -> %s: %.0f km, %.1f h driving over %d day(s)\n",
		it.Context.Origin, it.Context.Destination, it.TotalDistanceKm, it.TotalDrivingHours, len(it.Days))
	if it.Degraded {
		fmt.Printf("(degraded: %s ran on fallbacks)\n", strings.Join(it.SkippedEnhancements, ", "))
	}
	for _, day := range it.Days {
		fmt.Printf("\nDay %d  %s -> %s  (%.0f km, %.1f h)\n",
			day.Segment.DayIndex+1, day.Segment.StartWaypoint.Name, day.Segment.EndWaypoint.Name,
			day.Segment.DistanceKm, day.Segment.DrivingTimeHours)
		for _, p := range day.POIs {
			detour := fmt.Sprintf("+%.0f min detour", p.DetourMinutes)
			if p.WorthTheDetour {
				detour += ", worth it"
			}
			fmt.Printf("  - %s [%s] (%s)\n", p.Name, p.ExperienceCategory, detour)
		}
		for _, s := range day.Suggestions {
			fmt.Printf("  * %s: %s\n", s.Kind, s.Name)
		}
		for _, tip := range day.Tips {
			fmt.Printf("  tip: %s\n", tip)
		}
	}
}

func init() {
	planCmd.Flags().StringVarP(&fromArg, "from", "f", "", "Origin city")
	planCmd.Flags().StringVarP(&toArg, "to", "t", "", "Destination city")
	planCmd.Flags().StringSliceVar(&viaArg, "via", nil, "Intermediate stops")
	planCmd.Flags().StringVarP(&modeArg, "mode", "m", "driving", "Transport mode (driving|cycling|walking)")
	planCmd.Flags().StringVarP(&preferenceArg, "preference", "p", "fastest", "Route preference (fastest|scenic|longest)")
	planCmd.Flags().StringVar(&budgetArg, "budget", "", "Budget tier (budget|mid-range|premium)")
	planCmd.Flags().StringSliceVarP(&interestsArg, "interests", "i", nil, "Interest tags (e.g. castles,viewpoints)")
	planCmd.Flags().Float64Var(&hoursArg, "hours", 6, "Max driving hours per day")
	planCmd.Flags().StringVarP(&dateArg, "date", "d", "", "Start date (YYYY-MM-DD)")
	planCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the raw itinerary JSON")
	planCmd.MarkFlagRequired("from")
	planCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(planCmd)
}
