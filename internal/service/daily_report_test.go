package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/product-watch/internal/model"
	"github.com/iliyamo/product-watch/internal/queue"
)

func TestDailyReportTargetsAllAdmins(t *testing.T) {
	svc, store, _ := visitFixture()
	ctx := context.Background()

	require.NoError(t, store.InsertVisit(ctx, &model.Visit{
		ProductID: 1, IPHash: "h1", SessionID: "s", Timestamp: time.Now().UTC().Add(-time.Hour),
	}))

	admins := &memAdmins{emails: map[uint64]string{
		10: "admin-a@example.com",
		11: "admin-b@example.com",
	}}
	notifier := &memNotifier{}
	r := NewDailyReporter(svc, admins, notifier, time.Hour)

	require.NoError(t, r.Send(ctx))
	require.Len(t, notifier.events, 1)

	ev := notifier.events[0]
	assert.Equal(t, queue.KindDailyReport, ev.Kind)
	assert.ElementsMatch(t,
		[]string{"admin-a@example.com", "admin-b@example.com"}, ev.Recipients)
	assert.Contains(t, ev.Subject, "Daily Product Report")
	assert.Contains(t, ev.Body, "widget")
	assert.Contains(t, ev.Body, "1 visits")
}

func TestDailyReportSkipsWhenNoRecipients(t *testing.T) {
	svc, _, _ := visitFixture()
	notifier := &memNotifier{}
	r := NewDailyReporter(svc, &memAdmins{emails: map[uint64]string{}}, notifier, time.Hour)

	require.NoError(t, r.Send(context.Background()))
	assert.Empty(t, notifier.events)
}

func TestReportBodyEmptyWindow(t *testing.T) {
	assert.Equal(t,
		"No product visits recorded in the current window.",
		reportBody(nil))
}
