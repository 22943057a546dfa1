package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/product-watch/internal/queue"
)

// DailyReporter periodically sends admins a summary of the most visited
// products. It reuses the popularity ranking, so the report reflects the
// same 30-day window the public endpoint serves.
type DailyReporter struct {
	visits   *VisitService
	admins   AdminDirectory
	notifier Notifier
	interval time.Duration
}

func NewDailyReporter(visits *VisitService, admins AdminDirectory, notifier Notifier, interval time.Duration) *DailyReporter {
	return &DailyReporter{visits: visits, admins: admins, notifier: notifier, interval: interval}
}

// Run emits one report per interval until the context is cancelled. Report
// failures are logged and the loop keeps going; a missed report is not worth
// crashing over.
func (r *DailyReporter) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.Send(ctx); err != nil {
				log.Printf("daily-report: %v", err)
			}
		}
	}
}

// Send builds and enqueues one report immediately. Exposed separately from
// Run so an operator trigger can fire a report out of schedule.
func (r *DailyReporter) Send(ctx context.Context) error {
	ranked, err := r.visits.PopularProducts(ctx, 5)
	if err != nil {
		return fmt.Errorf("ranking: %w", err)
	}
	recipients, err := r.admins.AdminEmails(ctx, 0)
	if err != nil {
		return fmt.Errorf("recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ev := queue.NotificationEvent{
		Kind:       queue.KindDailyReport,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Daily Product Report — %s", now.Format("2006-01-02")),
		Body:       reportBody(ranked),
		OccurredAt: now.Format(time.RFC3339),
	}
	if err := r.notifier.Enqueue(ctx, ev); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// reportBody renders one line per ranked product.
func reportBody(ranked []PopularProduct) string {
	if len(ranked) == 0 {
		return "No product visits recorded in the current window."
	}
	var b strings.Builder
	b.WriteString("Most visited products, trailing 30 days:\n")
	for i, p := range ranked {
		fmt.Fprintf(&b, "%d. %s — %d visits (%d unique, %+.1f%% vs previous period)\n",
			i+1, p.Product.Name, p.TotalVisits, p.UniqueVisitors, p.PercentageChange)
	}
	return b.String()
}
