package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/config"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "List committed attendance entries",
	Long: `List attendance entries committed to the local database.
Without flags the current day is shown.

Examples:
  face-attend attendance
  face-attend attendance --from 2025-03-01T00:00:00Z --to 2025-04-01T00:00:00Z`,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("from", "", "Range start (RFC 3339, defaults to midnight UTC today)")
	attendanceCmd.Flags().String("to", "", "Range end (RFC 3339, defaults to midnight UTC tomorrow)")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	now := time.Now().UTC()
	from := now.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	if v := mustGetString(cmd, "from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		from = parsed.UTC()
	}
	if v := mustGetString(cmd, "to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		to = parsed.UTC()
	}

	recorder, err := attendance.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening attendance database: %w", err)
	}
	defer recorder.Close()

	entries, err := recorder.ListRange(context.Background(), from, to)
	if err != nil {
		return fmt.Errorf("listing attendance: %w", err)
	}

	if len(entries) == 0 {
		fmt.Printf("No attendance between %s and %s\n", from.Format(time.RFC3339), to.Format(time.RFC3339))
		return nil
	}

	fmt.Printf("%-24s %-12s %-20s %-20s %10s %6s\n",
		"IDENTITY", "CAMERA", "FIRST SEEN", "LAST SEEN", "SIGHTINGS", "SIM")
	for _, e := range entries {
		fmt.Printf("%-24s %-12s %-20s %-20s %10d %6.3f\n",
			e.Identity, e.CameraID,
			e.FirstSeen.Format("2006-01-02 15:04:05"),
			e.LastSeen.Format("2006-01-02 15:04:05"),
			e.Sightings, e.BestSimilarity)
	}
	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}
