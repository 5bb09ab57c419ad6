package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/javi11/mediahook/internal/events"
	"github.com/javi11/mediahook/internal/reconciler"
)

// RenderWindow formats one closed aggregation window as a single grouped
// Telegram message. Arrival order is preserved within each section.
// localize maps an event to its display title; pass nil to use the
// original titles.
func RenderWindow(evs []events.ImportEvent, localize func(events.ImportEvent) string) string {
	if localize == nil {
		localize = func(ev events.ImportEvent) string { return ev.DisplayTitle() }
	}

	var imports, upgrades, requests []string
	for _, ev := range evs {
		line := " • " + eventLink(ev, localize(ev))
		switch ev.Kind {
		case events.KindUpgrade:
			upgrades = append(upgrades, line+qualitySuffix(ev))
		case events.KindRequest:
			requests = append(requests, requestLine(ev, localize(ev)))
		default:
			imports = append(imports, line+qualitySuffix(ev))
		}
	}

	var b strings.Builder
	section := func(header string, lines []string) {
		if len(lines) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(header + "\n")
		b.WriteString(strings.Join(lines, "\n"))
	}

	section("<b>📥 Imported</b>", imports)
	section("<b>⬆️ Upgraded</b>", upgrades)
	section("<b>📨 Requests</b>", requests)
	return b.String()
}

func qualitySuffix(ev events.ImportEvent) string {
	if ev.Quality == "" {
		return ""
	}
	return fmt.Sprintf(" <i>[%s]</i>", html.EscapeString(ev.Quality))
}

func requestLine(ev events.ImportEvent, title string) string {
	var icon string
	switch ev.RequestStatus {
	case events.RequestDeclined:
		icon = "❌"
	case events.RequestPending:
		icon = "🕘"
	default:
		icon = "✅"
	}

	line := fmt.Sprintf(" • %s %s", icon, eventLink(ev, title))
	if ev.FourK {
		line += " <i>[4K]</i>"
	}
	if ev.RequestedBy != "" {
		line += fmt.Sprintf(" — requested by <i>%s</i>", html.EscapeString(ev.RequestedBy))
	}
	if ev.Seasons != "" {
		line += fmt.Sprintf(", seasons %s", html.EscapeString(ev.Seasons))
	}
	return line
}

// eventLink wraps the title in the best available external link: TVDB for
// series, IMDB for movies, TMDB as fallback.
func eventLink(ev events.ImportEvent, title string) string {
	escaped := html.EscapeString(title)
	switch {
	case ev.TVDBID != 0:
		return fmt.Sprintf(`<a href="https://www.thetvdb.com/dereferrer/series/%d">%s</a>`, ev.TVDBID, escaped)
	case ev.IMDBID != "":
		return fmt.Sprintf(`<a href="https://www.imdb.com/title/%s">%s</a>`, ev.IMDBID, escaped)
	case ev.TMDBID != 0 && ev.MediaType != "":
		return fmt.Sprintf(`<a href="https://www.themoviedb.org/%s/%d">%s</a>`, ev.MediaType, ev.TMDBID, escaped)
	default:
		return escaped
	}
}

// RenderOutcome formats a reconciliation report for the private channel.
func RenderOutcome(o *reconciler.Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>🧹 Reconciliation: %s</b>", html.EscapeString(o.Root))
	if o.DryRun {
		b.WriteString(" <i>(dry run — nothing was deleted)</i>")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Freed %s of %s planned\n", formatBytes(o.BytesFreed), formatBytes(o.BytesPlanned))

	if len(o.MediaDeleted) > 0 {
		b.WriteString("\n<b>Media removed</b>\n")
		for _, item := range o.MediaDeleted {
			fmt.Fprintf(&b, " • %s (%s)\n", html.EscapeString(item.Title), formatBytes(item.SizeBytes))
		}
	}

	if len(o.TorrentsDeleted) > 0 {
		b.WriteString("\n<b>Torrents deleted</b>\n")
		for _, ref := range o.TorrentsDeleted {
			fmt.Fprintf(&b, " • %s <i>@%s</i>\n", html.EscapeString(ref.Name), html.EscapeString(ref.Instance))
		}
	}

	if len(o.TorrentsKept) > 0 {
		b.WriteString("\n<b>Still seeding (kept)</b>\n")
		for _, ref := range o.TorrentsKept {
			fmt.Fprintf(&b, " • %s <i>@%s</i> (%d min seeded)\n",
				html.EscapeString(ref.Name), html.EscapeString(ref.Instance), ref.SeedingMinutes)
		}
	}

	if o.ThresholdUnreachable {
		b.WriteString("\n⚠️ <b>Disk budget unreachable</b>: everything eligible is planned and usage is still over the threshold\n")
	}

	if len(o.Errors) > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d error(s) during the run\n", len(o.Errors))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatBytes(n int64) string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if n >= gb {
		return fmt.Sprintf("%.1f GB", float64(n)/float64(gb))
	}
	return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
}
