package main

import (
	"context"
	"flag"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Topics and their subscriptions (same name)
var queues = []string{"opera-mosaic-events", "opera-mosaic-jobs", "opera-mosaic-downloads"}

func main() {
	ctx := context.Background()

	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		os.Setenv("PUBSUB_EMULATOR_HOST", "localhost:8085")
	}

	projectID := flag.String("project", "opera-mosaic-emulator", "emulator project")
	publishTopic := flag.String("publish-topic", "", "topic where to publish the job (optional)")
	publishJob := flag.String("publish-job", "", "json file of the job to publish (common.MosaicJob or common.DownloadJob)")
	flag.Parse()

	logger := log.Logger(ctx)
	logger.Info("New client for project " + *projectID)
	client, err := pubsub.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal("pubsub.NewClient", zap.Error(err))
	}
	defer client.Close()

	for _, queue := range queues {
		logger.Info("Create Topic : " + queue)
		if _, err = client.CreateTopic(ctx, queue); err != nil && status.Code(err) != codes.AlreadyExists {
			log.Fatal("pubsub.CreateTopic", zap.Error(err))
		}
		logger.Info("Create Subscription : " + queue)
		if _, err = client.CreateSubscription(ctx, queue, pubsub.SubscriptionConfig{
			Topic:       client.Topic(queue),
			AckDeadline: 10 * time.Second,
		}); err != nil && status.Code(err) != codes.AlreadyExists {
			log.Fatal("pubsub.CreateSubscription", zap.Error(err))
		}
	}

	if *publishTopic != "" && *publishJob != "" {
		data, err := os.ReadFile(*publishJob)
		if err != nil {
			log.Fatal("read job", zap.Error(err))
		}
		topic := client.Topic(*publishTopic)
		defer topic.Stop()
		id, err := topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
		if err != nil {
			log.Fatal("pubsub.Publish", zap.Error(err))
		}
		logger.Info("Job published", zap.String("topic", *publishTopic), zap.String("id", id))
	}

	logger.Info("Done!")
}
