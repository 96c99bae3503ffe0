package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hackgods/patient-queue-engine/internal/api"
	"github.com/hackgods/patient-queue-engine/internal/queue"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEntry(w io.Writer, format string, e *api.EntryResponse) error {
	if format == "json" {
		return printJSON(w, e)
	}
	fmt.Fprintf(w, "%s  token=%d  %s  %s  position=%d  patient=%s",
		e.ID, e.TokenNumber, e.Status, e.Priority, e.Position, e.PatientID)
	if e.PatientName != "" {
		fmt.Fprintf(w, " (%s)", e.PatientName)
	}
	if e.Attention != nil {
		fmt.Fprintf(w, "  attention=%s", e.Attention.Reason)
	}
	fmt.Fprintln(w)
	return nil
}

func printEntries(w io.Writer, format string, entries []api.EntryResponse) error {
	if format == "json" {
		return printJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tTOKEN\tID\tPATIENT\tPRIORITY\tSTATUS\tFLAG")
	for _, e := range entries {
		pos := "-"
		if e.Position > 0 {
			pos = fmt.Sprint(e.Position)
		}
		flag := ""
		if e.Attention != nil {
			flag = e.Attention.Reason
		}
		name := e.PatientName
		if name == "" {
			name = e.PatientID
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", pos, e.TokenNumber, e.ID, name, e.Priority, e.Status, flag)
	}
	return tw.Flush()
}

func printQueue(w io.Writer, format string, view *api.QueueResponse) error {
	if format == "json" {
		return printJSON(w, view)
	}
	if err := printEntries(w, format, view.Entries); err != nil {
		return err
	}
	fmt.Fprintln(w)
	printStats(w, view.Stats)
	return nil
}

func printStats(w io.Writer, st queue.Stats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tNORMAL\tURGENT\tTOTAL")
	rows := []struct {
		name string
		c    queue.PriorityCounts
	}{
		{"waiting", st.Waiting},
		{"nurse_completed", st.NurseCompleted},
		{"ready_for_doctor", st.ReadyForDoctor},
		{"in_consultation", st.InConsultation},
		{"completed", st.Completed},
		{"cancelled", st.Cancelled},
		{"active", st.Active},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.name, r.c.Normal, r.c.Urgent, r.c.Total)
	}
	fmt.Fprintf(tw, "total\t\t\t%d\n", st.Total)
	_ = tw.Flush()
}

func printCurrent(w io.Writer, format string, cur *api.CurrentResponse) error {
	if format == "json" {
		return printJSON(w, cur)
	}
	if cur.Entry == nil {
		fmt.Fprintln(w, "no consultation in progress")
		return nil
	}
	if err := printEntry(w, format, cur.Entry); err != nil {
		return err
	}
	if p := cur.Patient; p != nil {
		fmt.Fprintf(w, "patient: %s  phone=%s  visits=%d\n", p.Name, p.Phone, p.VisitCount)
	}
	return nil
}

func printSweep(w io.Writer, format string, res *queue.SweepResult) error {
	if format == "json" {
		return printJSON(w, res)
	}
	fmt.Fprintf(w, "examined=%d advanced=%d flagged=%d failed=%d\n",
		res.Examined, res.Advanced, res.Flagged, res.Failed)
	return nil
}
