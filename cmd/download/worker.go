package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/airbusgeo/geocube/interface/messaging"
	"github.com/airbusgeo/geocube/interface/messaging/pgqueue"
	"github.com/airbusgeo/geocube/interface/messaging/pubsub"
	"github.com/airbusgeo/opera-mosaic/common"
	"github.com/airbusgeo/opera-mosaic/processor"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"go.uber.org/zap"
)

const maxTries = 5

// work pulls the download jobs from the job queue and publishes their results on the event queue
func work(ctx context.Context, config *config, p *processor.Processor) error {
	var jobConsumer messaging.Consumer
	var eventPublisher messaging.Publisher
	var logMessaging string
	{
		if config.PgqDbConnection != "" {
			db, w, err := pgqueue.SqlConnect(ctx, config.PgqDbConnection)
			if err != nil {
				return fmt.Errorf("MessagingService: %w", err)
			}
			logMessaging += fmt.Sprintf(" pulling on pgqueue:%s", config.JobQueue)
			consumer := pgqueue.NewConsumer(db, config.JobQueue)
			defer consumer.Stop()
			jobConsumer = consumer
			if config.EventQueue != "" {
				logMessaging += fmt.Sprintf(" pushing on pgqueue:%s", config.EventQueue)
				eventPublisher = pgqueue.NewPublisher(w, config.EventQueue, pgqueue.WithMaxRetries(5))
			}
		} else {
			var err error
			logMessaging += fmt.Sprintf(" pulling on pubsub:%s/%s", config.PsProject, config.JobQueue)
			if jobConsumer, err = pubsub.NewConsumer(config.PsProject, config.JobQueue); err != nil {
				return fmt.Errorf("pubsub.NewConsumer: %w", err)
			}
			if config.EventQueue != "" {
				logMessaging += fmt.Sprintf(" pushing on pubsub:%s/%s", config.PsProject, config.EventQueue)
				eventTopic, err := pubsub.NewPublisher(ctx, config.PsProject, config.EventQueue, pubsub.WithMaxRetries(5))
				if err != nil {
					return fmt.Errorf("pubsub.NewPublisher: %w", err)
				}
				defer eventTopic.Stop()
				eventPublisher = eventTopic
			}
		}
	}
	if eventPublisher == nil {
		return fmt.Errorf("missing configuration for messaging.EventPublisher")
	}

	jobStarted := time.Time{}
	go func() {
		http.HandleFunc("/termination_cost", func(w http.ResponseWriter, r *http.Request) {
			terminationCost := 0
			if jobStarted != (time.Time{}) {
				terminationCost = int(time.Since(jobStarted).Seconds() * 1000) //milliseconds since task was leased
			}
			fmt.Fprintf(w, "%d", terminationCost)
		})
		http.ListenAndServe(":9000", nil)
	}()

	log.Logger(ctx).Debug("download worker starts" + logMessaging)
	for {
		err := jobConsumer.Pull(ctx, func(ctx context.Context, msg *messaging.Message) (err error) {
			jobStarted = time.Now()
			defer func() {
				jobStarted = time.Time{}
			}()
			ctx = log.With(ctx, "msgID", msg.ID)
			log.Logger(log.With(ctx, "body", string(msg.Data))).Sugar().Debugf("message %s try %d", msg.ID, msg.TryCount)

			job := common.DownloadJob{}
			if err := json.Unmarshal(msg.Data, &job); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			} else if job.ID == "" {
				return fmt.Errorf("invalid payload: missing id")
			}
			ctx = log.With(ctx, "job", job.ID)

			result := common.Result{Type: common.ResultTypeDownload, ID: job.ID, Status: common.StatusFAILED}
			defer func() {
				if err != nil && service.Temporary(err) {
					log.Logger(ctx).Warn("job temporary failure", zap.Error(err))
					return
				}
				if err != nil {
					log.Logger(ctx).Warn("job failed", zap.Error(err))
					result.Message = err.Error()
				}
				resb, e := json.Marshal(result)
				if e != nil {
					err = service.MakeTemporary(fmt.Errorf("marshal: %w", e))
				} else if e := eventPublisher.Publish(ctx, resb); e != nil {
					err = service.MakeTemporary(fmt.Errorf("failed to enqueue result: %w", e))
				}
			}()
			if msg.TryCount > maxTries {
				return fmt.Errorf("too many retries")
			}

			if result, _, err = p.ProcessDownload(ctx, job); err != nil {
				if msg.TryCount >= maxTries {
					return fmt.Errorf("too many retries: %v", err)
				}
				return err
			}
			log.Logger(ctx).Sugar().Infof("successfully processed job %s: %s", job.ID, result.Message)
			return nil
		})
		if err != nil {
			return fmt.Errorf("ps.process: %w", err)
		}
	}
}
