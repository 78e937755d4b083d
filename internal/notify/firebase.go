// Package notify holds the delivery sinks behind service.NotificationDispatcher.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"tea_refill/internal/domain"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// NewFirebaseApp initialises the Firebase app from a service account file.
func NewFirebaseApp(ctx context.Context, credentialsFile, projectID string) (*firebase.App, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}

// FCMSender sends push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(ctx context.Context, app *firebase.App) (*FCMSender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, msg domain.PushMessage) error {
	id, err := s.client.Send(ctx, &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: map[string]string{
			"requestId": msg.RequestID,
			"status":    string(msg.Status),
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		return fmt.Errorf("FCMSender.Send: %w", err)
	}
	log.Printf("FCM: sent %s (%s) as %s", msg.RequestID, msg.Status, id)
	return nil
}

// FirestoreTokenDirectory reads users/{uid}.pushToken, where the mobile apps register tokens.
type FirestoreTokenDirectory struct {
	client *firestore.Client
}

func NewFirestoreTokenDirectory(ctx context.Context, app *firebase.App) (*FirestoreTokenDirectory, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	return &FirestoreTokenDirectory{client: client}, nil
}

var ErrNoPushToken = errors.New("no push token registered")

func (d *FirestoreTokenDirectory) PushToken(ctx context.Context, userID string) (string, error) {
	snap, err := d.client.Collection("users").Doc(userID).Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return "", fmt.Errorf("%w: user %s", ErrNoPushToken, userID)
		}
		return "", fmt.Errorf("FirestoreTokenDirectory.PushToken: %w", err)
	}
	token, _ := snap.Data()["pushToken"].(string)
	if token == "" {
		return "", fmt.Errorf("%w: user %s", ErrNoPushToken, userID)
	}
	return token, nil
}

func (d *FirestoreTokenDirectory) Close() error {
	return d.client.Close()
}
