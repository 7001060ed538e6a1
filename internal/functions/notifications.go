package functions

import (
	"context"
	"errors"
	"fmt"

	"educore/internal/capability"
	"educore/internal/store"
)

// --------------------- getMyNotifications ---------------------

type notificationList struct {
	Notifications []store.Notification `json:"notifications"`
	Count         int                  `json:"count"`
	Unread        int                  `json:"unread"`
}

func newGetMyNotifications(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "getMyNotifications",
		Description: "List a user's notifications, newest first.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"user_id":     capability.String("User whose notifications to list."),
			"unread_only": capability.Boolean("Only return notifications not yet read."),
		}, "user_id"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			userID := str(args, "user_id")
			if userID == "" {
				return nil, errors.New("user_id is required")
			}
			ns, err := d.Store.NotificationsForUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			unread := 0
			for _, n := range ns {
				if !n.Read {
					unread++
				}
			}
			if boolArg(args, "unread_only") {
				kept := ns[:0]
				for _, n := range ns {
					if !n.Read {
						kept = append(kept, n)
					}
				}
				ns = kept
			}
			return notificationList{Notifications: ns, Count: len(ns), Unread: unread}, nil
		}),
	}
}

// --------------------- markNotificationRead ---------------------

func newMarkNotificationRead(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "markNotificationRead",
		Description: "Mark one of the user's notifications as read.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"notification_id": capability.String("Notification to mark."),
			"user_id":         capability.String("Owner of the notification."),
		}, "notification_id", "user_id"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			id := str(args, "notification_id")
			userID := str(args, "user_id")
			if id == "" || userID == "" {
				return nil, errors.New("notification_id and user_id are required")
			}
			if err := d.Store.MarkNotificationRead(ctx, id, userID); err != nil {
				return nil, fmt.Errorf("mark %q read: %w", id, err)
			}
			return map[string]any{"notification_id": id, "read": true}, nil
		}),
	}
}

// --------------------- postNotification ---------------------

func newPostNotification(d Deps) capability.Registration {
	return capability.Registration{
		Name:         "postNotification",
		Description:  "Send a notification to a user. Faculty only.",
		AllowedRoles: []string{"faculty", capability.RoleAdmin},
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"user_id": capability.String("Recipient."),
			"title":   capability.String("Short notification title."),
			"body":    capability.String("Longer notification text. Optional."),
		}, "user_id", "title"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			userID := str(args, "user_id")
			title := str(args, "title")
			if userID == "" || title == "" {
				return nil, errors.New("user_id and title are required")
			}
			n, err := d.Store.CreateNotification(ctx, store.Notification{
				UserID: userID,
				Title:  title,
				Body:   str(args, "body"),
			})
			if err != nil {
				return nil, fmt.Errorf("notify %q: %w", userID, err)
			}
			return n, nil
		}),
	}
}
