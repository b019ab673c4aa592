package cmd

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/donaldgifford/restock-tracker/internal/api/client"
	"github.com/donaldgifford/restock-tracker/internal/api/handlers"
	"github.com/donaldgifford/restock-tracker/internal/engine"
	"github.com/donaldgifford/restock-tracker/internal/history"
	"github.com/donaldgifford/restock-tracker/internal/notify"
	"github.com/donaldgifford/restock-tracker/internal/scheduler"
	"github.com/donaldgifford/restock-tracker/internal/state"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func availability(available bool) string {
	if available {
		return "in stock"
	}
	return "sold out"
}

func qtyText(a *state.Attributes) string {
	if q, ok := a.Quantity(); ok {
		return humanize.Comma(int64(q))
	}
	return "-"
}

func priceText(a *state.Attributes) string {
	if a.Price == nil || *a.Price == "" {
		return "-"
	}
	return "$" + *a.Price
}

func ago(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

func printProductsTable(w io.Writer, list *client.ProductList) error {
	tw := newTabWriter(w)
	tw.writef("KEY\tNAME\tSOURCE\tSTATUS\tQTY\tPRICE\tCHECKED\n")
	for i := range list.Products {
		p := &list.Products[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Key,
			truncate(p.Name, 40),
			p.Source,
			availability(p.Available),
			qtyText(&p.Attributes),
			priceText(&p.Attributes),
			ago(&p.LastChecked),
		)
	}
	tw.writef("\n%d products, %d in stock\n", list.Total, list.Available)
	return tw.finish()
}

func printProductDetail(w io.Writer, p *handlers.Product) error {
	tw := newTabWriter(w)
	tw.writef("Key:\t%s\n", p.Key)
	tw.writef("Name:\t%s\n", p.Name)
	tw.writef("Source:\t%s\n", p.Source)
	tw.writef("Category:\t%s\n", p.Category)
	tw.writef("Status:\t%s\n", availability(p.Available))
	tw.writef("Quantity:\t%s\n", qtyText(&p.Attributes))
	tw.writef("Price:\t%s\n", priceText(&p.Attributes))
	if p.StatusText != nil {
		tw.writef("Status Text:\t%s\n", *p.StatusText)
	}
	tw.writef("Last Checked:\t%s (%s)\n", p.LastChecked.Format(time.RFC3339), ago(&p.LastChecked))
	if p.URL != "" {
		tw.writef("URL:\t%s\n", p.URL)
	}
	return tw.finish()
}

func printHistoryTable(w io.Writer, entries []history.Entry) error {
	tw := newTabWriter(w)
	tw.writef("WHEN\tPRODUCT\tTITLE\tSOURCE\tSTATUS\tQTY\n")
	for i := range entries {
		e := &entries[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.ProductKey,
			truncate(e.Title, 40),
			e.Source,
			availability(e.Available),
			qtyText(&e.Attributes),
		)
	}
	return tw.finish()
}

func printSMSStats(w io.Writer, s *notify.Stats) error {
	tw := newTabWriter(w)
	if s.Cap > 0 {
		tw.writef("Today:\t%s / %s\n", humanize.Comma(int64(s.Today)), humanize.Comma(int64(s.Cap)))
	} else {
		tw.writef("Today:\t%s\n", humanize.Comma(int64(s.Today)))
	}
	tw.writef("Total:\t%s\n", humanize.Comma(int64(s.Total)))

	phones := make([]string, 0, len(s.ByPhone))
	for p := range s.ByPhone {
		phones = append(phones, p)
	}
	slices.SortFunc(phones, func(a, b string) int {
		if c := cmp.Compare(s.ByPhone[b], s.ByPhone[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	if len(phones) > 0 {
		tw.writef("\nPHONE\tSENT\tLAST MESSAGE\tWHEN\n")
	}
	for _, p := range phones {
		last, when := "-", "-"
		if m, ok := s.LastMessage[p]; ok {
			last = truncate(strings.ReplaceAll(m.Text, "\n", " "), 50)
			when = ago(&m.At)
		}
		tw.writef("%s\t%s\t%s\t%s\n", p, humanize.Comma(int64(s.ByPhone[p])), last, when)
	}
	return tw.finish()
}

func printJobsTable(w io.Writer, jobs []scheduler.JobStatus) error {
	tw := newTabWriter(w)
	tw.writef("NAME\tKIND\tSCHEDULE\tRUNS\tFAILURES\tLAST RUN\tNEXT RUN\tLAST ERROR\n")
	for i := range jobs {
		j := &jobs[i]
		schedule := j.Schedule
		if j.Running {
			schedule += " (running)"
		}
		tw.writef("%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			j.Name,
			j.Kind,
			schedule,
			j.Runs,
			j.Failures,
			ago(j.LastRun),
			ago(j.NextRun),
			truncate(j.LastError, 40),
		)
	}
	return tw.finish()
}

func printCheckResult(w io.Writer, res *engine.Result) error {
	tw := newTabWriter(w)
	tw.writef("Source:\t%s\n", res.Source)
	tw.writef("Run ID:\t%s\n", res.RunID)
	if res.NotModified {
		tw.writef("Upstream:\tnot modified, %d products touched\n", res.Touched)
	} else {
		tw.writef("Observed:\t%d\n", res.Observed)
	}
	tw.writef("Removed:\t%d\n", len(res.Removed))
	tw.writef("Changes:\t%d\n", len(res.Changes))
	if n := res.Notification; n != nil {
		tw.writef("Notified:\t%d sent, %d failed\n", n.Notified, n.Failed)
	}
	tw.writef("Duration:\t%s\n", res.Duration.Round(time.Millisecond))

	if len(res.Changes) > 0 {
		tw.writef("\nPRODUCT\tTITLE\tSTATUS\tQTY\tFIRST SEEN\n")
	}
	for i := range res.Changes {
		c := &res.Changes[i]
		tw.writef("%s\t%s\t%s\t%s\t%v\n",
			c.Key,
			truncate(c.TitleOr("-"), 40),
			availability(c.Available),
			qtyText(&c.Attributes),
			c.FirstSeen(),
		)
	}
	return tw.finish()
}

func printSubscribersTable(w io.Writer, users []subscribers.Subscriber, showPhones bool) error {
	tw := newTabWriter(w)
	tw.writef("PHONE\tNAME\tNOTIFICATIONS\tSUBSCRIPTIONS\tINVITED BY\n")
	for i := range users {
		u := &users[i]
		phone := subscribers.MaskPhone(u.Phone)
		if showPhones {
			phone = subscribers.FormatPhone(u.Phone)
		}
		notifications := "off"
		if u.NotificationsEnabled {
			notifications = "on"
		}
		tw.writef("%s\t%s\t%s\t%d\t%s\n",
			phone,
			cmp.Or(u.Name, "-"),
			notifications,
			len(u.Subscriptions),
			cmp.Or(u.InvitedBy, "-"),
		)
	}
	return tw.finish()
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
