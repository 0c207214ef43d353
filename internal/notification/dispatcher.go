// Package notification delivers reputation events to workers over push (SNS)
// and email (SES). Delivery is fire-and-forget: failures are logged, never
// surfaced to the assessment path.
package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"nearserve/internal/common/config"
	"nearserve/internal/common/logger"
	"nearserve/internal/models"
)

// Define interfaces for mocking
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

const deliveryTimeout = 10 * time.Second

type Dispatcher struct {
	db        *sql.DB
	config    config.NotificationConfig
	snsClient SNSService
	sesClient SESService
	logger    logger.Logger
}

func NewDispatcher(db *sql.DB, cfg config.NotificationConfig, snsClient SNSService, sesClient SESService, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		db:        db,
		config:    cfg,
		snsClient: snsClient,
		sesClient: sesClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notification"}),
	}
}

// ReputationChanged dispatches asynchronously and returns immediately.
func (d *Dispatcher) ReputationChanged(workerID string, change int, newScore int, assessmentType models.AssessmentType, becameRestricted bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		d.deliver(ctx, workerID, change, newScore, assessmentType, becameRestricted)
	}()
}

// deliver is the synchronous delivery path; split out so tests can drive it
// without racing the goroutine.
func (d *Dispatcher) deliver(ctx context.Context, workerID string, change int, newScore int, assessmentType models.AssessmentType, becameRestricted bool) {
	// Only no-shows and restriction crossings are worth a worker's attention.
	if assessmentType != models.AssessmentNoShow && !becameRestricted {
		return
	}

	email, deviceToken, err := d.lookupRecipient(ctx, workerID)
	if err != nil {
		d.logger.Warn("notification recipient lookup failed", map[string]interface{}{
			"workerId": workerID,
			"error":    err.Error(),
		})
		return
	}

	subject, body := buildMessage(change, newScore, assessmentType, becameRestricted)

	if d.config.Push.Enabled && d.snsClient != nil && deviceToken != "" {
		if err := d.sendPush(ctx, deviceToken, body); err != nil {
			d.logger.Warn("push notification failed", map[string]interface{}{
				"workerId": workerID,
				"error":    err.Error(),
			})
		}
	}

	// Email only for the hard event: the worker just lost booking eligibility.
	if becameRestricted && d.config.Email.Enabled && d.sesClient != nil && email != "" {
		if err := d.sendEmail(ctx, email, subject, body); err != nil {
			d.logger.Warn("email notification failed", map[string]interface{}{
				"workerId": workerID,
				"error":    err.Error(),
			})
		}
	}
}

func (d *Dispatcher) lookupRecipient(ctx context.Context, workerID string) (email, deviceToken string, err error) {
	var token sql.NullString
	err = d.db.QueryRowContext(ctx,
		`SELECT email, device_token FROM users WHERE id = $1`,
		workerID).Scan(&email, &token)
	if err != nil {
		return "", "", fmt.Errorf("lookup recipient: %w", err)
	}
	if token.Valid {
		deviceToken = token.String
	}
	return email, deviceToken, nil
}

func (d *Dispatcher) sendPush(ctx context.Context, targetArn, body string) error {
	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		TargetArn: aws.String(targetArn),
		Message:   aws.String(body),
	})
	return err
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(d.config.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}

func buildMessage(change, newScore int, assessmentType models.AssessmentType, becameRestricted bool) (subject, body string) {
	switch {
	case becameRestricted:
		subject = "Your NearServe account can no longer receive bookings"
		body = fmt.Sprintf(
			"A customer reported a missed appointment. Your reputation is now %d and new bookings are paused until it recovers.",
			newScore)
	case assessmentType == models.AssessmentNoShow:
		subject = "Missed appointment reported"
		body = fmt.Sprintf(
			"A customer reported a missed appointment (%+d). Your reputation is now %d.",
			change, newScore)
	default:
		subject = "Your reputation changed"
		body = fmt.Sprintf("Your reputation changed by %+d and is now %d.", change, newScore)
	}
	return subject, body
}
