package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
)

// writeReport prints one line per window and loggia room, then the summary
func writeReport(w io.Writer, r *compliance.BuildingResult) error {
	name := r.BuildingID
	if r.BuildingName != "" {
		name = fmt.Sprintf("%s (%s)", r.BuildingName, r.BuildingID)
	}
	fmt.Fprintf(w, "Building %s, %s, %s mode\n\n", name, r.CalculationDate.Format(time.DateOnly), r.Mode)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tINSOLATION\tKEO %\tVERDICT\tNOTES")
	for _, wr := range r.Windows {
		ins, k := "-", "-"
		if wr.Insolation != nil {
			ins = wr.Insolation.Formatted
		}
		if wr.KEO != nil {
			k = fmt.Sprintf("%.2f", wr.KEO.Total)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", wr.WindowID, ins, k, verdict(wr.Compliant), notes(wr.Errors, wr.Warnings))
	}

	if len(r.LoggiaRooms) > 0 {
		fmt.Fprintln(tw, "\t\t\t\t")
		fmt.Fprintln(tw, "LOGGIA ROOM\tINSOLATION\tKEO %\tGRID MIN/AVG %\tVERDICT\tNOTES")
		for _, room := range r.LoggiaRooms {
			ins, k, grid, note := "-", "-", "-", ""
			if room.Result != nil {
				if room.Result.Insolation != nil {
					ins = room.Result.Insolation.Formatted
				}
				if room.Result.KEO != nil {
					k = fmt.Sprintf("%.2f", room.Result.KEO.Total)
				}
				if g := room.Result.Grid; g != nil && g.PointCount > 0 {
					grid = fmt.Sprintf("%.2f/%.2f", g.Min, g.Average)
				}
				note = room.Result.Note
			}
			if n := notes(room.Errors, nil); n != "" {
				note = n
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", room.RoomID, ins, k, grid, verdict(room.Compliant), note)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n", r.Summary())
	return err
}

func verdict(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func notes(errs, warnings []string) string {
	return strings.Join(append(append([]string{}, errs...), warnings...), "; ")
}
