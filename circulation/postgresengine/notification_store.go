package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	colNotificationID = "notification_id"
	colUserID         = "user_id"
	colMessage        = "message"
	colNotifType      = "type"
	colMeta           = "meta"
	colIsRead         = "is_read"
	colCreatedAt      = "created_at"

	logActionInsertNotification = "insert notification"
	logActionListNotifications  = "list notifications"
	logActionMarkRead           = "mark notification read"
)

// NotificationStore appends and reads outbound notification records. The
// contract ends at the record: delivery channels are someone else's problem.
type NotificationStore struct {
	engine *Engine
}

// Append writes one notification record.
func (n NotificationStore) Append(ctx context.Context, notification circulation.Notification) error {
	return n.append(ctx, n.engine.db, notification)
}

// ListForUser returns all notifications for one user, newest first.
func (n NotificationStore) ListForUser(ctx context.Context, userID string) ([]circulation.Notification, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(n.engine.tables.Notifications).
		Select(colNotificationID, colUserID, colMessage, colNotifType, colMeta, colIsRead, colCreatedAt).
		Where(goqu.Ex{colUserID: userID}).
		Order(goqu.C(colCreatedAt).Desc()).
		ToSQL()
	if buildErr != nil {
		n.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return nil, buildErr
	}

	rows, _, queryErr := n.engine.executeQuery(ctx, n.engine.db, sqlQuery, logActionListNotifications)
	if queryErr != nil {
		return nil, queryErr
	}
	defer n.engine.closeRows(ctx, rows)

	notifications := make([]circulation.Notification, 0)

	for rows.Next() {
		var notification circulation.Notification

		scanErr := rows.Scan(
			&notification.NotificationID, &notification.UserID, &notification.Message,
			&notification.Type, &notification.MetaJSON, &notification.IsRead, &notification.CreatedAt,
		)
		if scanErr != nil {
			n.engine.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		notifications = append(notifications, notification)
	}

	return notifications, nil
}

// MarkRead flags one notification as read. Returns false when the
// notification does not exist or was already read; that is not an error.
func (n NotificationStore) MarkRead(ctx context.Context, notificationID string) (bool, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Update(n.engine.tables.Notifications).
		Set(goqu.Record{colIsRead: true}).
		Where(
			goqu.Ex{colNotificationID: notificationID},
			goqu.Ex{colIsRead: false},
		).
		ToSQL()
	if buildErr != nil {
		n.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return false, buildErr
	}

	rowsAffected, _, execErr := n.engine.executeStatement(ctx, n.engine.db, sqlQuery, logActionMarkRead)
	if execErr != nil {
		return false, execErr
	}

	return rowsAffected > 0, nil
}

func (n NotificationStore) append(ctx context.Context, dbh adapters.DBHandle, notification circulation.Notification) error {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(n.engine.tables.Notifications).
		Cols(colNotificationID, colUserID, colMessage, colNotifType, colMeta, colIsRead, colCreatedAt).
		Vals(goqu.Vals{
			notification.NotificationID.String(),
			notification.UserID,
			notification.Message,
			notification.Type,
			string(notification.MetaJSON),
			notification.IsRead,
			notification.CreatedAt,
		}).
		ToSQL()
	if buildErr != nil {
		n.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)

		return buildErr
	}

	_, _, execErr := n.engine.executeStatement(ctx, dbh, sqlQuery, logActionInsertNotification)

	return execErr
}
