package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"command-center/internal/app"
	"command-center/internal/metrics"
	"command-center/internal/model"
	"command-center/internal/platform/rabbitmq"
)

type Ingester interface {
	Ingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
}

// IngestWorker consumes queued ingestion jobs one at a time.
type IngestWorker struct {
	conn      *amqp.Connection
	ingester  Ingester
	queueName string
	log       *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, ingester Ingester, queueName string, log *zap.SugaredLogger) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		ingester:  ingester,
		queueName: queueName,
		log:       log.With("component", "ingest_worker", "queue", queueName),
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	// Embedding is slow; take one job at a time.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					metrics.IngestJobResult("failed")
					w.log.Errorw("ingest job failed", "message_id", d.MessageId, "error", err)
					_ = d.Nack(false, false)
					continue
				}
				metrics.IngestJobResult("ok")
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Info("ingest worker started")
	return nil
}

func (w *IngestWorker) handle(ctx context.Context, body []byte) error {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode ingest job failed: %w", err)
	}
	if job.DocumentID == "" {
		return fmt.Errorf("ingest job has no document id")
	}
	res, err := w.ingester.Ingest(ctx, app.IngestInput{
		DocumentID: job.DocumentID,
		Name:       job.Name,
		Content:    job.Content,
	})
	if err != nil {
		return err
	}
	w.log.Infow("ingest job done", "document_id", res.Document.ID, "chunks", res.Chunks)
	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
