package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfleet/avltracker/core/snapshot"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a snapshot payload and print its fields",
	Long:  "Decode reads a binary snapshot payload from the given file (or stdin) and prints its fields. Payloads with an unknown wire version are rejected.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	s, err := snapshot.Decode(data)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	out := cmd.OutOrStdout()
	avl := s.Avl()
	fmt.Fprintf(out, "vehicle:     %s\n", s.VehicleID())
	fmt.Fprintf(out, "time:        %s\n", time.UnixMilli(avl.Time).UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "position:    %.6f,%.6f\n", avl.Lat, avl.Lon)
	if s.Heading().Valid {
		fmt.Fprintf(out, "heading:     %.1f\n", s.Heading().Degrees)
	} else {
		fmt.Fprintf(out, "heading:     undefined\n")
	}
	fmt.Fprintf(out, "speed:       %.1f\n", avl.Speed)
	fmt.Fprintf(out, "block:       %s\n", s.BlockID())
	fmt.Fprintf(out, "method:      %s\n", s.AssignmentMethod())
	fmt.Fprintf(out, "route:       %s (%s)\n", s.RouteID(), s.RouteShortName())
	fmt.Fprintf(out, "trip:        %s pattern=%s direction=%s headsign=%q\n",
		s.TripID(), s.TripPatternID(), s.DirectionID(), s.Headsign())
	fmt.Fprintf(out, "predictable: %t\n", s.Predictable())
	if adh, ok := s.ScheduleAdherence(); ok {
		fmt.Fprintf(out, "adherence:   %s\n", adh.Duration())
	}
	if s.IsLayover() {
		fmt.Fprintf(out, "layover:     departs %s\n", time.UnixMilli(s.LayoverDepartureTime()).UTC().Format(time.RFC3339))
	}
	if s.NextStopID() != "" {
		fmt.Fprintf(out, "next stop:   %s\n", s.NextStopID())
	}
	return nil
}
