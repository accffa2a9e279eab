package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/metrics"
)

const (
	queueKey       = "notifications"
	failedQueueKey = "notifications:failed"
	maxTries       = 3
)

// Sender delivers one direct message. The Discord session implements
// it; tests swap in a fake.
type Sender interface {
	DirectMessage(ctx context.Context, discordID, title, body string) error
}

// Job is one queued notification.
type Job struct {
	DiscordID string    `json:"discord_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tries     int       `json:"tries"`
	Created   time.Time `json:"created"`
}

// Service queues notifications in Redis and delivers them from a
// background consumer. Delivery failures are retried up to three
// times, then parked on a failed queue for inspection.
type Service struct {
	redis  *redis.Client
	sender Sender
}

func New(redisAddr string, sender Sender) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		sender: sender,
	}
}

func (s *Service) Send(ctx context.Context, discordID, title, body string) error {
	job := Job{
		DiscordID: discordID,
		Title:     title,
		Body:      body,
		Tries:     0,
		Created:   time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal notification job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue notification for %s: %v", discordID, err)
		return err
	}

	logger.Infof("Notification queued: %s for %s", title, discordID)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification service stopped")
			return
		default:
			s.processNext(ctx)
			metrics.NotifyQueueLength.Set(float64(s.QueueLength(ctx)))
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad notification data: %v", err)
		return
	}

	job.Tries++
	logger.Infof("Delivering notification to %s (attempt %d)", job.DiscordID, job.Tries)
	if err := s.sender.DirectMessage(ctx, job.DiscordID, job.Title, job.Body); err != nil {
		logger.Errorf("Failed to deliver notification to %s: %v", job.DiscordID, err)

		if job.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
			logger.Infof("Retrying notification to %s (attempt %d)", job.DiscordID, job.Tries+1)
		} else {
			logger.Errorf("Notification to %s failed after %d attempts", job.DiscordID, maxTries)
			s.saveFailed(job, err)
			metrics.RecordNotification("failed")
		}
		return
	}

	metrics.RecordNotification("delivered")
	logger.Infof("Notification delivered to %s", job.DiscordID)
}

func (s *Service) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Errorf("Notification moved to failed queue: %s", job.DiscordID)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

// NotifyPurchaseFulfilled tells the buyer their item was delivered.
func (s *Service) NotifyPurchaseFulfilled(ctx context.Context, discordID, itemName string, quantity int) error {
	title := "Purchase Delivered"
	body := fmt.Sprintf("Your purchase of %dx %s has been delivered. Enjoy!", quantity, itemName)
	return s.Send(ctx, discordID, title, body)
}

// NotifyPurchaseFailed tells the buyer fulfillment failed and an admin
// will look at it.
func (s *Service) NotifyPurchaseFailed(ctx context.Context, discordID, itemName string) error {
	title := "Purchase Problem"
	body := fmt.Sprintf("We could not deliver your purchase of %s. An admin will review it shortly; your coins are not lost.", itemName)
	return s.Send(ctx, discordID, title, body)
}

// NotifyGiftReceived tells the recipient about incoming coins.
func (s *Service) NotifyGiftReceived(ctx context.Context, discordID string, amount int64, from string) error {
	title := "Gift Received"
	body := fmt.Sprintf("You received %d coins from %s!", amount, from)
	return s.Send(ctx, discordID, title, body)
}
