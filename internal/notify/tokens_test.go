package notify

import (
	"context"
	"errors"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository/memory"
	"testing"
)

func TestUserTokenDirectory(t *testing.T) {
	store := memory.NewStore()
	store.PutUser(domain.User{UserID: "K1", Username: "kitchen1", Role: domain.RoleKitchen, PushToken: "tok-k1"})
	store.PutUser(domain.User{UserID: "A1", Username: "agent1", Role: domain.RoleAgent})
	dir := NewUserTokenDirectory(store.Users())

	tests := []struct {
		name    string
		userID  string
		want    string
		wantErr error
	}{
		{name: "registered token", userID: "K1", want: "tok-k1"},
		{name: "user without token", userID: "A1", wantErr: ErrNoPushToken},
		{name: "unknown user", userID: "nobody", wantErr: ErrNoPushToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dir.PushToken(context.Background(), tt.userID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("PushToken() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PushToken() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("PushToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIoTMachinePublisherTopic(t *testing.T) {
	p := NewIoTMachinePublisher(nil, "tea/machines")
	if got := p.Topic("M-17"); got != "tea/machines/M-17/requests" {
		t.Errorf("Topic() = %q", got)
	}
}
