package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/clock"
	"github.com/sarchlab/gsclock/sim/dispatch"
)

var calendarSpecPath string

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Convert between dates and hours.",
}

var toHoursCmd = &cobra.Command{
	Use:   "to-hours <YYYY-MM-DD-HH>",
	Short: "Print the hours since the epoch of a date.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := loadCalendar()
		if err != nil {
			return err
		}

		t, err := cal.Parse(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), cal.TotalHours(t))

		return nil
	},
}

var fromHoursCmd = &cobra.Command{
	Use:   "from-hours <hours>",
	Short: "Print the date at a number of hours since the epoch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := loadCalendar()
		if err != nil {
			return err
		}

		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("hours must be an integer: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), cal.FromTotalHours(n))

		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <YYYY-MM-DD-HH> <hours>",
	Short: "Print a date moved by a number of hours.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := loadCalendar()
		if err != nil {
			return err
		}

		t, err := cal.Parse(args[0])
		if err != nil {
			return err
		}

		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("hours must be an integer: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), cal.AddHours(t, n))

		return nil
	},
}

var boundariesCmd = &cobra.Command{
	Use:   "boundaries <YYYY-MM-DD-HH>",
	Short: "Print the boundaries crossed when the clock reaches a date.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := loadCalendar()
		if err != nil {
			return err
		}

		t, err := cal.Parse(args[0])
		if err != nil {
			return err
		}

		bs := dispatch.New(cal).Boundaries(clock.HourBoundary{
			Time:       t,
			TotalHours: cal.TotalHours(t),
		})

		for _, b := range bs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", b.Kind, b.Index)
		}

		return nil
	},
}

func init() {
	calendarCmd.PersistentFlags().StringVar(&calendarSpecPath, "calendar", "",
		"YAML calendar spec, defaults to 24-hour days and twelve 30-day months")

	calendarCmd.AddCommand(toHoursCmd, fromHoursCmd, addCmd, boundariesCmd)
	rootCmd.AddCommand(calendarCmd)
}

func loadCalendar() (*calendar.Calendar, error) {
	spec := calendar.DefaultSpec()
	if calendarSpecPath != "" {
		var err error

		spec, err = calendar.LoadSpec(calendarSpecPath)
		if err != nil {
			return nil, err
		}
	}

	return calendar.New(spec)
}
