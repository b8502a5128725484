package worker

import (
	"context"

	"boutique-api/internal/broker"
	"boutique-api/internal/service"
	"boutique-api/internal/util"

	"go.uber.org/zap"
)

// ShipmentWorker consumes order lifecycle events and books carrier shipments
// for confirmed orders.
type ShipmentWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewShipmentWorker creates a new shipment worker
func NewShipmentWorker(consumer *broker.Consumer, shipments *service.ShipmentService) *ShipmentWorker {
	handler := broker.NewEventHandler()
	handler.OnOrderConfirmed(shipments.HandleOrderConfirmed)

	return &ShipmentWorker{
		consumer: consumer,
		handler:  handler,
		logger:   util.GetLogger(),
	}
}

// Start begins consuming events. It blocks until the context is cancelled.
func (w *ShipmentWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.logger.Info("Shipment worker starting")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop cancels consumption and closes the underlying consumer.
func (w *ShipmentWorker) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("Shipment worker stopped")
	return w.consumer.Close()
}
