package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BRO3886/searchsync/internal/config"
	"github.com/BRO3886/searchsync/internal/docsync"
	"github.com/BRO3886/searchsync/internal/hooks"
	"github.com/BRO3886/searchsync/internal/kafka"
	"github.com/BRO3886/searchsync/internal/opensearch"
	"github.com/BRO3886/searchsync/internal/queue"
	"github.com/BRO3886/searchsync/internal/search"
	"github.com/BRO3886/searchsync/internal/store"
	"github.com/BRO3886/searchsync/internal/stream"
	"github.com/BRO3886/searchsync/internal/types"
)

var mode string

func init() {
	flag.StringVar(&mode, "mode", "watch", "mode to run in: watch, sync, ingest")
	flag.Parse()
}

func main() {
	cfg := config.LoadConfig()

	ctx := context.Background()
	kafkaCfg := kafka.NewConfig(
		kafka.WithBrokers(cfg.Kafka.Brokers...),
		kafka.WithSyncProducer(),
		kafka.WithConsumeOldest(),
		kafka.WithTopics(cfg.Kafka.Topic.Name),
		kafka.WithConsumerGroup(cfg.Kafka.ConsumerGroup),
		kafka.WithRetry(
			cfg.Kafka.Retry.Max,
			time.Duration(cfg.Kafka.Retry.Backoff)*time.Millisecond,
		),
	)

	switch mode {
	case "watch", "sync":
		backend, err := opensearch.New(ctx, cfg)
		if err != nil {
			log.Fatalf("error starting opensearch backend: %v", err)
		}

		index := cfg.Opensearch.Index.Name
		mapping := docsync.Mapping(cfg.Opensearch.Index.Mapping)

		if err := backend.EnsureIndex(ctx, index); err != nil {
			log.Fatalf("error ensuring index: %v", err)
		}
		if err := backend.PutMapping(ctx, index, mapping.Properties()); err != nil {
			log.Fatalf("error putting mapping: %v", err)
		}

		if mode == "sync" {
			runSync(ctx, cfg, backend, mapping)
			return
		}

		dequeuer, err := kafka.NewDequeuer(ctx, kafkaCfg)
		if err != nil {
			log.Fatalf("error starting kafka dequeuer: %v", err)
		}
		runWatch(ctx, cfg, dequeuer, backend, mapping)
	case "ingest":
		enqueuer, err := kafka.NewEnqueuer(ctx, kafkaCfg)
		if err != nil {
			log.Fatalf("error starting kafka enqueuer: %v", err)
		}
		runIngestion(ctx, cfg, enqueuer)
	default:
		log.Fatalf("unknown mode: %s", mode)
	}
}

// logObserver reports hook outcomes on the collection scope.
type logObserver struct{}

func (logObserver) Indexed(rec types.Record, err error) {
	if err != nil {
		log.Printf("[hooks] error indexing %s: %v", rec.Id, err)
		return
	}
	log.Printf("[hooks] indexed %s", rec.Id)
}

func (logObserver) Removed(rec types.Record, err error) {
	if err != nil {
		log.Printf("[hooks] error removing %s: %v", rec.Id, err)
		return
	}
	log.Printf("[hooks] removed %s", rec.Id)
}

func (logObserver) Filtered(rec types.Record) {
	log.Printf("[hooks] filtered %s", rec.Id)
}

// runWatch consumes mutation events off the topic and applies each one to
// the index through the lifecycle hooks.
func runWatch(
	ctx context.Context,
	cfg *config.Config,
	dequeuer queue.Dequeuer,
	backend search.Backend,
	mapping docsync.Mapping,
) {
	log.Printf("started watching")
	defer dequeuer.Close()

	proto := docsync.New(backend, cfg.Opensearch.Index.Name, cfg.Sync.Script)
	binder := hooks.NewBinder(proto, mapping, nil)
	binder.Observe(logObserver{})

	if err := dequeuer.Dequeue(ctx, cfg.Kafka.Topic.Name, func(ctx context.Context, data []byte) error {
		var event types.MutationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[handler] error unmarshalling event: %v", err)
			return err
		}

		rec, err := types.RecordFromObject(event.Object())
		if err != nil {
			log.Printf("[handler] error parsing record: %v", err)
			return err
		}

		switch event.Op {
		case types.OpCreate:
			mc := binder.PreSave(rec, true)
			return binder.PostSave(ctx, rec, mc)
		case types.OpUpdate:
			mc := binder.PreSave(rec, false)
			return binder.PostSave(ctx, rec, mc)
		case types.OpDelete:
			return binder.PostRemove(ctx, rec)
		default:
			log.Printf("[handler] unknown op %q, skipping", event.Op)
			return nil
		}
	}); err != nil {
		log.Printf("[handler] error dequeuing events: %v", err)
	}
}

// runSync replays stream.jsonl into an in-memory store and runs one full
// re-synchronization against the index.
func runSync(ctx context.Context, cfg *config.Config, backend search.Backend, mapping docsync.Mapping) {
	log.Printf("started full sync")

	memstore := store.NewMemStore()
	for _, event := range readEvents("stream.jsonl") {
		rec, err := types.RecordFromObject(event.Object())
		if err != nil {
			log.Printf("skipping event: %v", err)
			continue
		}
		switch event.Op {
		case types.OpCreate, types.OpUpdate:
			memstore.Put(rec)
		case types.OpDelete:
			memstore.Delete(rec.Id)
		}
	}
	log.Printf("loaded %d records", memstore.Len())

	synchronizer := stream.New(memstore, backend, cfg.Opensearch.Index.Name, mapping,
		stream.WithBatchSize(cfg.Sync.Bulk.Batch),
		stream.WithRefreshDelay(time.Duration(cfg.Sync.RefreshDelay)*time.Millisecond),
	)

	summary, err := synchronizer.Sync(ctx, nil, nil)
	if err != nil {
		log.Fatalf("sync failed: %v", err)
	}
	log.Printf("sync complete: %+v", summary)
}

// runIngestion replays stream.jsonl onto the mutation topic.
func runIngestion(ctx context.Context, cfg *config.Config, enqueuer queue.Enqueuer) {
	log.Printf("started ingestion")
	defer enqueuer.Close()

	for i, event := range readEvents("stream.jsonl") {
		// validations if any
		if time.UnixMilli(event.TimeStamp).After(time.Now()) {
			log.Printf("event %d is in the future", i)
			continue
		}
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("error marshalling event %d: %v", i, err)
			continue
		}
		if err := enqueuer.Enqueue(ctx, cfg.Kafka.Topic.Name, data); err != nil {
			log.Printf("error enqueuing event %d: %v", i, err)
		}
		log.Printf("enqueued event %d", i)
	}
	log.Printf("ingestion completed")
}

func readEvents(path string) []types.MutationEvent {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read stream file: %v", err)
	}

	var events []types.MutationEvent
	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event types.MutationEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			log.Printf("error unmarshalling event %d: %v", i, err)
			continue
		}
		events = append(events, event)
	}
	return events
}
