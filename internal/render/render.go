package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
)

// Printer writes tables to an output stream.
type Printer struct {
	w   io.Writer
	now func() time.Time

	critical *color.Color
	warning  *color.Color
	info     *color.Color
	muted    *color.Color
	title    *color.Color
}

// Option configures a Printer.
type Option func(*Printer)

// WithoutColor disables terminal colors regardless of the output.
func WithoutColor() Option {
	return func(p *Printer) {
		for _, c := range p.colors() {
			c.DisableColor()
		}
	}
}

// WithClock overrides the clock used for relative times.
func WithClock(now func() time.Time) Option {
	return func(p *Printer) {
		p.now = now
	}
}

// New creates a printer. Colors follow the fatih/color terminal detection.
func New(w io.Writer, opts ...Option) *Printer {
	p := &Printer{
		w:        w,
		now:      time.Now,
		critical: color.New(color.FgRed, color.Bold),
		warning:  color.New(color.FgYellow),
		info:     color.New(color.FgCyan),
		muted:    color.New(color.FgHiBlack),
		title:    color.New(color.Bold),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Printer) colors() []*color.Color {
	return []*color.Color{p.critical, p.warning, p.info, p.muted, p.title}
}

// Status prints the daemon status as a key/value table.
func (p *Printer) Status(s *mova.Status) {
	t := p.newTable()
	t.AppendRows([]table.Row{
		{"Session", s.SessionID},
		{"Started", p.since(s.StartedAt)},
		{"Source", s.Source},
		{"Pipeline", s.Pipeline},
		{"Recording", orDash(s.Recording)},
		{"Queue depth", humanize.Comma(int64(s.QueueDepth))},
		{"Lines", humanize.Comma(s.Stats.TotalLines)},
		{"Snapshots", humanize.Comma(s.Stats.TotalSnapshots)},
		{"Current sequence", seqOrDash(s.Stats.CurrentSequence)},
		{"History", humanize.Comma(int64(s.Stats.HistoryLen))},
		{"Pinned", p.pinned(s.Stats)},
		{"Pending events", queued(s.Stats.PendingEvents, s.Stats.DroppedEvents)},
		{"Pending raw lines", queued(s.Stats.PendingRawLines, s.Stats.DroppedRawLines)},
		{"Active alerts", p.alertCount(s.ActiveAlerts)},
	})
	p.render(t)
}

// Snapshot prints the stage fields and the per-link state of s.
func (p *Printer) Snapshot(s *mova.Snapshot) {
	clock := "-"
	if s.TimeOfDay != nil {
		clock = s.TimeOfDay.String()
	}

	p.title.Fprintf(p.w, "Snapshot #%d  stage %d  %s  (%d records)\n", //nolint:errcheck // Terminal output.
		s.SequenceID, s.Stage, clock, len(s.Records))

	fields := p.newTable()
	for _, pair := range stageFieldPairs(s.Fields) {
		fields.AppendRow(table.Row{pair[0], pair[1]})
	}

	if fields.Length() > 0 {
		p.render(fields)
	}

	if len(s.Links) == 0 {
		p.muted.Fprintln(p.w, "no links") //nolint:errcheck // Terminal output.

		return
	}

	links := p.newTable()
	links.AppendHeader(table.Row{"Link", "ESLI", "LA", "BDR", "DEM", "SDEM", "IG", "CF", "OPT", "Updated"})

	for _, no := range s.LinkNumbers() {
		link := s.Links[no]
		links.AppendRow(table.Row{
			no,
			optString(link.ESLI),
			len(link.LAs),
			len(link.BDRs),
			p.dem(link.DEM),
			optString(link.SDEM),
			optInt(link.IG),
			optInt(link.CF),
			joinOpts(link.OptBoundaryA, link.OptBoundaryB, link.OptBoundaryC),
			link.LastUpdated.Format(time.TimeOnly),
		})
	}

	links.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	p.render(links)
}

// History prints one row per snapshot.
func (p *Printer) History(snapshots []*mova.Snapshot) {
	if len(snapshots) == 0 {
		p.muted.Fprintln(p.w, "no snapshots") //nolint:errcheck // Terminal output.

		return
	}

	t := p.newTable()
	t.AppendHeader(table.Row{"Seq", "Stage", "Time", "Started", "Records", "Links", "SAT"})

	for _, s := range snapshots {
		clock := "-"
		if s.TimeOfDay != nil {
			clock = s.TimeOfDay.String()
		}

		t.AppendRow(table.Row{
			s.SequenceID,
			s.Stage,
			clock,
			p.since(s.StartedAt),
			len(s.Records),
			len(s.Links),
			optString(s.Fields.SAT),
		})
	}

	p.render(t)
}

// Alerts prints alerts with colored severities.
func (p *Printer) Alerts(alerts []*alarm.Alert) {
	if len(alerts) == 0 {
		p.muted.Fprintln(p.w, "no alerts") //nolint:errcheck // Terminal output.

		return
	}

	t := p.newTable()
	t.AppendHeader(table.Row{"ID", "Severity", "Rule", "Message", "Raised", "Cleared", "Ack"})

	for _, a := range alerts {
		cleared := "-"
		if a.ClearedAt != nil {
			cleared = p.since(*a.ClearedAt)
		}

		ack := ""
		if a.Acknowledged {
			ack = "yes"
		}

		t.AppendRow(table.Row{
			a.ID,
			p.severity(a.Severity),
			a.Rule,
			a.Message,
			p.since(a.RaisedAt),
			cleared,
			ack,
		})
	}

	p.render(t)
}

// Events prints drained display events.
func (p *Printer) Events(events []mova.Event) {
	if len(events) == 0 {
		p.muted.Fprintln(p.w, "no events") //nolint:errcheck // Terminal output.

		return
	}

	t := p.newTable()
	t.AppendHeader(table.Row{"Time", "Kind", "Stage", "Link", "Snapshot", "Summary"})

	for _, e := range events {
		t.AppendRow(table.Row{
			e.Time.Format("15:04:05.000"),
			e.Kind,
			optInt(e.Stage),
			optInt(e.Link),
			e.SnapshotSequenceID,
			e.Summary,
		})
	}

	p.render(t)
}

// RawLines prints drained raw lines as they arrived.
func (p *Printer) RawLines(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(p.w, line) //nolint:errcheck // Terminal output.
	}
}

// Sessions prints the sessions stored in an archive.
func (p *Printer) Sessions(sessions []archive.Session) {
	if len(sessions) == 0 {
		p.muted.Fprintln(p.w, "archive is empty") //nolint:errcheck // Terminal output.

		return
	}

	t := p.newTable()
	t.AppendHeader(table.Row{"Session", "Snapshots", "First", "Last"})

	for _, s := range sessions {
		t.AppendRow(table.Row{
			s.ID,
			humanize.Comma(int64(s.Snapshots)),
			s.FirstSeen.Local().Format(time.DateTime),
			p.since(s.LastSeen),
		})
	}

	p.render(t)
}

// Entries prints the archived snapshots of one session.
func (p *Printer) Entries(entries []archive.Entry) {
	if len(entries) == 0 {
		p.muted.Fprintln(p.w, "no archived snapshots") //nolint:errcheck // Terminal output.

		return
	}

	t := p.newTable()
	t.AppendHeader(table.Row{"Seq", "Stage", "Records", "Links", "Started", "Archived"})

	for _, e := range entries {
		t.AppendRow(table.Row{
			e.SequenceID,
			e.Stage,
			e.Records,
			e.Links,
			e.StartedAt.Local().Format(time.DateTime),
			p.since(e.ArchivedAt),
		})
	}

	p.render(t)
}

// Line prints a plain message line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...) //nolint:errcheck // Terminal output.
}

func (p *Printer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	return t
}

func (p *Printer) render(t table.Writer) {
	fmt.Fprintln(p.w, t.Render()) //nolint:errcheck // Terminal output.
}

func (p *Printer) since(at time.Time) string {
	if at.IsZero() {
		return "-"
	}

	return humanize.RelTime(at, p.now(), "ago", "from now")
}

func (p *Printer) severity(s alarm.Severity) string {
	switch s {
	case alarm.SeverityCritical:
		return p.critical.Sprint(s.String())
	case alarm.SeverityWarning:
		return p.warning.Sprint(s.String())
	default:
		return p.info.Sprint(s.String())
	}
}

func (p *Printer) alertCount(n int) string {
	if n == 0 {
		return "0"
	}

	return p.warning.Sprint(strconv.Itoa(n))
}

func (p *Printer) pinned(stats mova.Stats) string {
	if !stats.Pinned {
		return "no"
	}

	if stats.PinnedSequence == 0 {
		return "yes (empty)"
	}

	return fmt.Sprintf("#%d", stats.PinnedSequence)
}

// dem highlights a non-idle DEM value.
func (p *Printer) dem(v *string) string {
	if v == nil {
		return "-"
	}

	if strings.Trim(*v, "0 ") == "" {
		return *v
	}

	return p.warning.Sprint(*v)
}

func stageFieldPairs(f mova.StageFields) [][2]string {
	var pairs [][2]string

	add := func(name, value string) {
		if value != "" {
			pairs = append(pairs, [2]string{name, value})
		}
	}

	add("SAT", optStringEmpty(f.SAT))
	add("SUS", strings.Join(f.SUS, " "))
	add("SMF", joinInts(f.SMF))
	add("DMX", joinInts(f.DMX))
	add("LMIN", joinInts(f.LMIN))
	add("RCX", joinInts(f.RCX))
	add("LAM", optIntEmpty(f.LAM))
	add("CUT", optIntEmpty(f.CUT))
	add("SMCYC", optIntEmpty(f.SMCYC))
	add("SMIN", optIntEmpty(f.SMIN))

	return pairs
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}

	return strings.Join(parts, " ")
}

func joinOpts(values ...*int) string {
	parts := make([]string, 0, len(values))

	for _, v := range values {
		if v != nil {
			parts = append(parts, strconv.Itoa(*v))
		}
	}

	if len(parts) == 0 {
		return "-"
	}

	return strings.Join(parts, "/")
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}

	return strconv.Itoa(*v)
}

func optIntEmpty(v *int) string {
	if v == nil {
		return ""
	}

	return strconv.Itoa(*v)
}

func optString(v *string) string {
	if v == nil {
		return "-"
	}

	return *v
}

func optStringEmpty(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}

func queued(pending int, dropped uint64) string {
	out := humanize.Comma(int64(pending))
	if dropped > 0 {
		out += " (" + humanize.Comma(int64(dropped)) + " dropped)" //nolint:gosec // Drop counters stay far below MaxInt64.
	}

	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func seqOrDash(seq int64) string {
	if seq == 0 {
		return "-"
	}

	return "#" + strconv.FormatInt(seq, 10)
}
