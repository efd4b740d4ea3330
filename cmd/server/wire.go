//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/config"
	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
)

var storageSet = wire.NewSet(
	newRepositories,
	newHistoryBackend,
	wire.FieldsOf(new(*repositories), "channels", "events"),
)

var pipelineSet = wire.NewSet(
	newAuditSink,
	channel.NewService,
	event.NewStore,
	newReplyGenerator,
	newDeliveryAgent,
	newNotifier,
	newPipelineService,
	newWorkerPool,
)

// BuildApplication assembles the relay with Wire.
func BuildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	wire.Build(
		storageSet,
		pipelineSet,
		newHTTPServer,
		NewApplication,
	)
	return nil, nil, nil
}
