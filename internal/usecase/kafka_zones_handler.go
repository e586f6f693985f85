package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"ZonePulse/internal/domain/models"
	domrepo "ZonePulse/internal/domain/repository"
	"ZonePulse/pkg/logger"
)

// KafkaZonesHandler consumes zone events from the zones topic and lands
// them in the archive. It keeps archival off the hot detection path.
type KafkaZonesHandler struct {
	topic   string
	archive domrepo.ZoneArchive
	log     *logger.Logger
}

func NewKafkaZonesHandler(topic string, archive domrepo.ZoneArchive, log *logger.Logger) *KafkaZonesHandler {
	return &KafkaZonesHandler{topic: topic, archive: archive, log: log}
}

func (h *KafkaZonesHandler) Topic() string { return h.topic }

func (h *KafkaZonesHandler) Handle(ctx context.Context, key, value []byte) error {
	var e models.ZoneEvent
	if err := json.Unmarshal(value, &e); err != nil {
		// Malformed payloads are logged and dropped, not retried.
		h.log.Warn("dropping malformed zone event",
			logger.String("key", string(key)), logger.Error(err))
		return nil
	}
	if err := h.archive.Store(ctx, &e); err != nil {
		return fmt.Errorf("archive zone %s: %w", e.Zone.Key(), err)
	}
	return nil
}
