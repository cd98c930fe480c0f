package postgresengine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
)

func Test_Notification_Append(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`INSERT INTO "notifications"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock())

	notification, buildErr := circulation.BuildNotification(
		"S001", "Book B001 is due tomorrow.", circulation.NotificationTypeFine, nil, fakeNow)
	assert.NoError(t, buildErr)

	err := engine.Notifications().Append(context.Background(), notification)

	assert.NoError(t, err)
	conn.assertScriptExhausted()
}

func Test_Notification_ListForUser(t *testing.T) {
	firstID := uuid.New()
	secondID := uuid.New()

	conn := newFakeConn(t,
		expectQuery(`FROM "notifications"`,
			[]any{secondID, "S001", "Fine of 3.00 recorded.", circulation.NotificationTypeFine, `{"fine_amount":3}`, false, fakeNow},
			[]any{firstID, "S001", "Book B001 returned late.", circulation.NotificationTypeFine, `{}`, true, fakeNow.AddDate(0, 0, -1)},
		),
	)
	engine := newTestEngine(t, conn, frozenClock())

	notifications, err := engine.Notifications().ListForUser(context.Background(), "S001")

	assert.NoError(t, err)
	assert.Len(t, notifications, 2)
	assert.Equal(t, secondID, notifications[0].NotificationID)
	assert.False(t, notifications[0].IsRead)
	assert.JSONEq(t, `{"fine_amount":3}`, string(notifications[0].MetaJSON))
	assert.True(t, notifications[1].IsRead)
}

func Test_Notification_MarkRead(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`"is_read"`, 1),
	)
	engine := newTestEngine(t, conn, frozenClock())

	marked, err := engine.Notifications().MarkRead(context.Background(), uuid.NewString())

	assert.NoError(t, err)
	assert.True(t, marked)
}

func Test_Notification_MarkRead_When_Already_Read(t *testing.T) {
	conn := newFakeConn(t,
		expectExec(`"is_read"`, 0),
	)
	engine := newTestEngine(t, conn, frozenClock())

	marked, err := engine.Notifications().MarkRead(context.Background(), uuid.NewString())

	assert.NoError(t, err)
	assert.False(t, marked)
}
