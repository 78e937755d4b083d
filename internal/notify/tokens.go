package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
)

// UserTokenDirectory resolves push tokens from the users table.
type UserTokenDirectory struct {
	users repository.UserRepository
}

func NewUserTokenDirectory(users repository.UserRepository) *UserTokenDirectory {
	return &UserTokenDirectory{users: users}
}

func (d *UserTokenDirectory) PushToken(ctx context.Context, userID string) (string, error) {
	user, err := d.users.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: user %s", ErrNoPushToken, userID)
		}
		return "", fmt.Errorf("UserTokenDirectory.PushToken: %w", err)
	}
	if user.PushToken == "" {
		return "", fmt.Errorf("%w: user %s", ErrNoPushToken, userID)
	}
	return user.PushToken, nil
}

// LogSender stands in for FCM when no Firebase credentials are configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg domain.PushMessage) error {
	log.Printf("Push (log only): token=%s title=%q body=%q", msg.Token, msg.Title, msg.Body)
	return nil
}
