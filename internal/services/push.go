package services

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/models"
)

// PushService sends push notifications via Firebase Cloud Messaging.
type PushService struct {
	db     *gorm.DB
	client *messaging.Client
	log    zerolog.Logger
}

// NewPush initializes the Firebase push notification service. With no
// service account, or when Firebase cannot be initialized, the returned
// service is disabled and every send is a no-op.
func NewPush(ctx context.Context, db *gorm.DB, serviceAccountPath string) *PushService {
	p := &PushService{db: db, log: logger.Component("push")}
	if serviceAccountPath == "" {
		p.log.Info().Msg("no FCM service account configured, push notifications disabled")
		return p
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to initialize Firebase app")
		return p
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to get messaging client")
		return p
	}

	p.client = client
	p.log.Info().Msg("push notifications enabled")
	return p
}

func (p *PushService) Enabled() bool {
	return p != nil && p.client != nil
}

// SendToUser sends a push notification to a user by their ID.
// No-op if push is not configured or the user has no FCM token.
func (p *PushService) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) {
	if !p.Enabled() {
		return
	}

	var user models.User
	if err := p.db.WithContext(ctx).Select("fcm_token").Where("id = ?", userID).First(&user).Error; err != nil {
		return
	}
	if user.FCMToken == "" {
		return
	}

	msg := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := p.client.Send(ctx, msg); err != nil {
		p.log.Warn().Err(err).Str("user_id", userID).Msg("failed to send push")
	}
}
