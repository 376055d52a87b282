package consumer

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stillpoint-yoga/studio/internal/metrics"
	"github.com/stillpoint-yoga/studio/internal/models"
	"github.com/stillpoint-yoga/studio/internal/repository"
)

// OccupancyInvalidator drops the cached seat summaries of every occurrence of a class.
type OccupancyInvalidator interface {
	InvalidateClass(ctx context.Context, classID uint)
}

// ClassConsumer keeps the booking service's class replica in sync with the schedule service.
type ClassConsumer struct {
	repo  repository.ClassRepository
	cache OccupancyInvalidator
}

// NewClassConsumer builds the replica consumer. cache may be nil.
func NewClassConsumer(repo repository.ClassRepository, cache OccupancyInvalidator) *ClassConsumer {
	return &ClassConsumer{repo: repo, cache: cache}
}

// Start listens for messages until msgs closes or ctx is done.
func (cc *ClassConsumer) Start(ctx context.Context, msgs <-chan amqp.Delivery) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Println("[ClassConsumer] context done, stopping consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("[ClassConsumer] channel closed, stopping consumer")
					return
				}
				cc.handleMessage(ctx, msg)
			}
		}
	}()
}

func (cc *ClassConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var class models.ClassSchedule
	if err := json.Unmarshal(msg.Body, &class); err != nil || class.ID == 0 {
		log.Printf("[ClassConsumer] dropping malformed %s message: %v", msg.RoutingKey, err)
		metrics.ClassSyncs.WithLabelValues("malformed").Inc()
		msg.Nack(false, false)
		return
	}

	if err := cc.repo.Upsert(ctx, &class); err != nil {
		log.Printf("[ClassConsumer] failed to upsert class %d: %v", class.ID, err)
		metrics.ClassSyncs.WithLabelValues("retry").Inc()
		msg.Nack(false, true) // requeue
		return
	}

	// capacity or schedule may have changed
	if cc.cache != nil {
		cc.cache.InvalidateClass(ctx, class.ID)
	}

	log.Printf("[ClassConsumer] synced class %d (%s): %s", class.ID, msg.RoutingKey, class.Name)
	metrics.ClassSyncs.WithLabelValues("synced").Inc()
	msg.Ack(false)
}
