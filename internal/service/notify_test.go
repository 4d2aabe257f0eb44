package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/DukeRupert/tenantly/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNotifyUser(store *fakeStore, phone string) repository.User {
	u := repository.User{
		ID:          uuid.New(),
		Email:       "ada@example.com",
		PhoneNumber: sql.NullString{String: phone, Valid: phone != ""},
		IsActive:    true,
	}
	store.users[u.ID] = u
	return u
}

func TestNotificationService_Notify(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		n        Notification
		wantType string
		check    func(t *testing.T, payload []byte)
	}{
		{
			name:     "push",
			n:        Notification{Channel: ChannelPush, Title: "Hi", Body: "Your report is ready", Data: map[string]string{"thread_id": "t1"}},
			wantType: worker.JobTypeSendPush,
			check: func(t *testing.T, payload []byte) {
				var p worker.SendPushPayload
				require.NoError(t, json.Unmarshal(payload, &p))
				assert.Equal(t, "Your report is ready", p.Body)
				assert.Equal(t, "t1", p.Data["thread_id"])
			},
		},
		{
			name:     "sms",
			phone:    "+15551234567",
			n:        Notification{Channel: ChannelSMS, Body: " hello "},
			wantType: worker.JobTypeSendSMS,
			check: func(t *testing.T, payload []byte) {
				var p worker.SendSMSPayload
				require.NoError(t, json.Unmarshal(payload, &p))
				assert.Equal(t, "+15551234567", p.To)
				assert.Equal(t, "hello", p.Body)
			},
		},
		{
			name:     "email",
			n:        Notification{Channel: ChannelEmail, Body: "hello"},
			wantType: worker.JobTypeSendEmail,
			check: func(t *testing.T, payload []byte) {
				var p worker.SendEmailPayload
				require.NoError(t, json.Unmarshal(payload, &p))
				assert.Equal(t, "ada@example.com", p.To)
				assert.Equal(t, domain.DefaultFromEmail, p.From)
				assert.NotEmpty(t, p.Subject)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			user := addNotifyUser(store, tt.phone)
			svc := NewNotificationService(store, "", discardLogger())

			jobID, err := svc.Notify(context.Background(), user.ID, tt.n)
			require.NoError(t, err)

			require.Len(t, store.jobs, 1)
			assert.Equal(t, store.jobs[0].ID, jobID)
			assert.Equal(t, tt.wantType, store.jobs[0].JobType)
			tt.check(t, store.jobs[0].Payload)
		})
	}
}

func TestNotificationService_Notify_Errors(t *testing.T) {
	store := newFakeStore()
	user := addNotifyUser(store, "")
	svc := NewNotificationService(store, "ops@example.com", discardLogger())
	ctx := context.Background()

	_, err := svc.Notify(ctx, user.ID, Notification{Channel: ChannelSMS, Body: "hi"})
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	_, err = svc.Notify(ctx, user.ID, Notification{Channel: "pigeon", Body: "hi"})
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	_, err = svc.Notify(ctx, user.ID, Notification{Channel: ChannelPush, Body: "  "})
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	_, err = svc.Notify(ctx, uuid.New(), Notification{Channel: ChannelPush, Body: "hi"})
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))

	assert.Empty(t, store.jobs)
}
