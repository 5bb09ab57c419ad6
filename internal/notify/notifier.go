package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/javi11/mediahook/internal/events"
	"github.com/javi11/mediahook/internal/reconciler"
)

// TitleResolver localizes display titles. Satisfied by tmdb.Client.
type TitleResolver interface {
	LocalizedTitle(ctx context.Context, mediaType string, tmdbID int64, original string) string
}

const sendTimeout = 30 * time.Second

// Notifier renders and delivers grouped summaries and reconciliation
// reports. It is the Aggregator's flush target and the engine's outcome
// sink.
type Notifier struct {
	tg            *Telegram
	chatID        string
	privateChatID string
	resolver      TitleResolver
	log           *slog.Logger
}

// NewNotifier wires a notifier. resolver may be nil to disable localized
// titles.
func NewNotifier(tg *Telegram, chatID, privateChatID string, resolver TitleResolver) *Notifier {
	return &Notifier{
		tg:            tg,
		chatID:        chatID,
		privateChatID: privateChatID,
		resolver:      resolver,
		log:           slog.Default().With("component", "notifier"),
	}
}

// FlushWindow sends one grouped summary for a closed aggregation window.
func (n *Notifier) FlushWindow(key string, evs []events.ImportEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	text := RenderWindow(evs, func(ev events.ImportEvent) string {
		return n.localize(ctx, ev)
	})
	if text == "" {
		return
	}

	if err := n.tg.SendMessage(ctx, n.chatID, text); err != nil {
		n.log.Error("failed to send grouped summary", "key", key, "events", len(evs), "err", err)
		return
	}
	n.log.Info("sent grouped summary", "key", key, "events", len(evs))
}

// OutcomeReady sends the reconciliation report to the private channel,
// falling back to the main chat when none is configured.
func (n *Notifier) OutcomeReady(outcome *reconciler.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	chatID := n.privateChatID
	if chatID == "" {
		chatID = n.chatID
	}

	if err := n.tg.SendMessage(ctx, chatID, RenderOutcome(outcome)); err != nil {
		n.log.Error("failed to send reconciliation report", "root", outcome.Root, "err", err)
	}
}

func (n *Notifier) localize(ctx context.Context, ev events.ImportEvent) string {
	if n.resolver == nil || ev.TMDBID == 0 || ev.MediaType == "" {
		return ev.DisplayTitle()
	}

	localized := n.resolver.LocalizedTitle(ctx, ev.MediaType, ev.TMDBID, ev.Title)
	if localized == ev.Title {
		return ev.DisplayTitle()
	}
	if ev.SeasonEpisode != "" {
		return localized + " " + ev.SeasonEpisode
	}
	if ev.Year > 0 {
		return fmt.Sprintf("%s (%d)", localized, ev.Year)
	}
	return localized
}
