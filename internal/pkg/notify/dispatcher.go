package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/milanotravel/tourbooking/internal/pkg/cache"
)

const (
	// Redis key prefixes
	EventKeyPrefix     = "event:"
	EventQueueKey      = "event_queue"
	EventProcessingKey = "event_processing"
	EventStatsKey      = "event_stats"

	// Event settings
	DefaultMaxRetries = 3
	EventTTL          = 24 * time.Hour // Undelivered events expire after 24 hours
)

// Dispatcher delivers lifecycle notifications through Redis so a mail
// outage never blocks the request path.
type Dispatcher struct {
	client     *redis.Client
	workers    int
	workerPool chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = 2 // Default number of workers
	}

	return &Dispatcher{
		client:     cache.GetClient(),
		workers:    workers,
		workerPool: make(chan struct{}, workers),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the dispatcher workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}

	d.running = true
	log.Infof("[Notify] Starting %d workers", d.workers)

	// Initialize worker pool
	for i := 0; i < d.workers; i++ {
		d.workerPool <- struct{}{}
	}

	// Start workers
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	// Start stuck-processing sweeper (recovers events stuck after a crash)
	d.wg.Add(1)
	go d.stuckSweeper(10*time.Minute, 1*time.Minute)
}

// Stop stops the dispatcher workers
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}

	log.Info("[Notify] Stopping workers...")
	close(d.stopCh)
	d.running = false
	d.wg.Wait()
	log.Info("[Notify] All workers stopped")
}

// Publish adds a new event to the queue
func (d *Dispatcher) Publish(eventType EventType, payload map[string]interface{}) (*Event, error) {
	ctx := context.Background()

	event := &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Status:     EventStatusPending,
		Payload:    payload,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	eventKey := EventKeyPrefix + event.ID

	// Use a pipeline for atomic operations
	pipe := d.client.Pipeline()
	pipe.Set(ctx, eventKey, eventData, EventTTL)
	pipe.LPush(ctx, EventQueueKey, event.ID)
	pipe.HIncrBy(ctx, EventStatsKey, string(EventStatusPending), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}

	log.Infof("[Notify] Published event %s (Type: %s)", event.ID, event.Type)
	return event, nil
}

// worker processes events from the queue
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	log.Infof("[Notify] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-d.stopCh:
			log.Infof("[Notify] Worker %d stopping", id)
			return
		default:
			// Acquire worker slot
			<-d.workerPool

			event, err := d.dequeueEvent(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[Notify] Worker %d: Error dequeuing event: %v", id, err)
				}
				// Release worker slot and wait before retry
				d.workerPool <- struct{}{}
				time.Sleep(time.Second)
				continue
			}

			if event != nil {
				log.Infof("[Notify] Worker %d processing event %s (Type: %s)", id, event.ID, event.Type)
				d.processEvent(ctx, event)
			}

			// Release worker slot
			d.workerPool <- struct{}{}
		}
	}
}

// dequeueEvent gets the next event from the queue
func (d *Dispatcher) dequeueEvent(ctx context.Context) (*Event, error) {
	// Move event from pending queue to processing queue atomically
	result, err := d.client.BRPopLPush(ctx, EventQueueKey, EventProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	eventID := result
	eventKey := EventKeyPrefix + eventID

	eventData, err := d.client.Get(ctx, eventKey).Result()
	if err != nil {
		// Event data not found, remove from processing queue
		d.client.LRem(ctx, EventProcessingKey, 1, eventID)
		return nil, fmt.Errorf("event data not found for ID %s", eventID)
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		d.client.LRem(ctx, EventProcessingKey, 1, eventID)
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", eventID, err)
	}

	return &event, nil
}

// processEvent delivers a single event
func (d *Dispatcher) processEvent(ctx context.Context, event *Event) {
	event.MarkAsProcessing()
	d.updateEvent(ctx, event)

	var err error
	switch event.Type {
	case EventProposalSubmitted:
		err = d.sendProposalSubmitted(event)
	case EventSupplierConfirmationRequested:
		err = d.sendSupplierConfirmationRequest(event)
	case EventProposalConfirmed:
		err = d.sendProposalConfirmed(event)
	case EventProposalRejected:
		err = d.sendProposalRejected(event)
	case EventBookingFinalized:
		err = d.sendBookingFinalized(event)
	default:
		err = fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Errorf("[Notify] Event %s failed: %v", event.ID, err)
		event.MarkAsFailed(err.Error())

		if event.IsRetryable() {
			log.Infof("[Notify] Retrying event %s (Attempt %d/%d)", event.ID, event.RetryCount, event.MaxRetries)
			event.MarkAsRetrying()
			d.updateEvent(ctx, event)

			// Re-enqueue for retry after a delay
			time.AfterFunc(time.Minute*time.Duration(event.RetryCount), func() {
				d.client.LPush(ctx, EventQueueKey, event.ID)
			})
		} else {
			log.Errorf("[Notify] Event %s permanently failed after %d retries", event.ID, event.RetryCount)
			d.updateStats(ctx, EventStatusFailed, 1)
		}
	} else {
		log.Infof("[Notify] Event %s delivered", event.ID)
		event.MarkAsCompleted()
		d.updateStats(ctx, EventStatusCompleted, 1)
		// Remove delivered event from Redis entirely
		d.removeCompletedEvent(ctx, event.ID)
	}

	if event.Status != EventStatusCompleted {
		d.updateEvent(ctx, event)
	}
	d.removeFromProcessing(ctx, event.ID)
}

// stuckSweeper periodically scans the processing list and requeues events
// stuck for longer than maxAge
func (d *Dispatcher) stuckSweeper(maxAge time.Duration, interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-d.stopCh:
			log.Info("[Notify] Stuck sweeper stopping")
			return
		case <-ticker.C:
			ids, err := d.client.LRange(ctx, EventProcessingKey, 0, -1).Result()
			if err != nil {
				log.Errorf("[Notify] Sweeper LRange error: %v", err)
				continue
			}
			now := time.Now()
			for _, id := range ids {
				eventKey := EventKeyPrefix + id
				data, err := d.client.Get(ctx, eventKey).Result()
				if err != nil {
					if err != redis.Nil {
						log.Errorf("[Notify] Sweeper Get error for %s: %v", id, err)
					}
					_ = d.client.LRem(ctx, EventProcessingKey, 1, id).Err()
					continue
				}
				var event Event
				if uerr := json.Unmarshal([]byte(data), &event); uerr != nil {
					log.Errorf("[Notify] Sweeper unmarshal error for %s: %v", id, uerr)
					_ = d.client.LRem(ctx, EventProcessingKey, 1, id).Err()
					continue
				}
				if event.Status != EventStatusProcessing {
					_ = d.client.LRem(ctx, EventProcessingKey, 1, id).Err()
					continue
				}
				started := event.ProcessedAt
				if started == nil || started.IsZero() {
					tmp := event.UpdatedAt
					if tmp.IsZero() {
						tmp = event.CreatedAt
					}
					started = &tmp
				}
				if now.Sub(*started) > maxAge {
					log.Warnf("[Notify] Recovering stuck event %s (type=%s), age=%s", event.ID, event.Type, now.Sub(*started))
					event.Status = EventStatusPending
					event.ErrorMsg = "recovered by sweeper"
					event.UpdatedAt = now
					d.updateEvent(ctx, &event)
					_ = d.client.LRem(ctx, EventProcessingKey, 1, id).Err()
					_ = d.client.RPush(ctx, EventQueueKey, id).Err()
				}
			}
		}
	}
}

// updateEvent updates event data in Redis
func (d *Dispatcher) updateEvent(ctx context.Context, event *Event) {
	eventData, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Notify] Failed to marshal event %s: %v", event.ID, err)
		return
	}

	eventKey := EventKeyPrefix + event.ID
	if err := d.client.Set(ctx, eventKey, eventData, EventTTL).Err(); err != nil {
		log.Errorf("[Notify] Failed to update event %s: %v", event.ID, err)
	}
}

// removeFromProcessing removes an event from the processing queue
func (d *Dispatcher) removeFromProcessing(ctx context.Context, eventID string) {
	if err := d.client.LRem(ctx, EventProcessingKey, 1, eventID).Err(); err != nil {
		log.Errorf("[Notify] Failed to remove event %s from processing queue: %v", eventID, err)
	}
}

// removeCompletedEvent completely removes a delivered event from Redis
func (d *Dispatcher) removeCompletedEvent(ctx context.Context, eventID string) {
	eventKey := EventKeyPrefix + eventID
	if err := d.client.Del(ctx, eventKey).Err(); err != nil {
		log.Errorf("[Notify] Failed to remove completed event %s from Redis: %v", eventID, err)
	}
}

// updateStats updates delivery statistics
func (d *Dispatcher) updateStats(ctx context.Context, status EventStatus, delta int64) {
	if err := d.client.HIncrBy(ctx, EventStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[Notify] Failed to update event stats: %v", err)
	}
}

// GetQueueSize returns the number of pending events
func (d *Dispatcher) GetQueueSize(ctx context.Context) (int64, error) {
	return d.client.LLen(ctx, EventQueueKey).Result()
}

// GetStats returns statistics about event delivery
func (d *Dispatcher) GetStats(ctx context.Context) (map[EventStatus]int64, error) {
	stats, err := d.client.HGetAll(ctx, EventStatsKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[EventStatus]int64)
	for status, count := range stats {
		if countInt, err := json.Number(count).Int64(); err == nil {
			result[EventStatus(status)] = countInt
		}
	}

	return result, nil
}
