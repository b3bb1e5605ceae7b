// Package app wires the pieces together: it routes source updates from MQTT
// to the owning composite tracker, publishes the fused results, and handles
// configuration reloads.
package app

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mnordin/composite-hass/internal/bus"
	"github.com/mnordin/composite-hass/internal/cache"
	"github.com/mnordin/composite-hass/internal/config"
	"github.com/mnordin/composite-hass/internal/ha"
	"github.com/mnordin/composite-hass/internal/mqtt"
	"github.com/mnordin/composite-hass/internal/store"
	"github.com/mnordin/composite-hass/internal/tracker"
	"github.com/mnordin/composite-hass/internal/transmission"
	"github.com/mnordin/composite-hass/internal/zones"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// runner owns one tracker and its serialized update queue. Every update is
// processed to completion before the next; there is no locking inside the
// tracker because there is no preemption within an update.
type runner struct {
	t    *tracker.Tracker
	ch   chan *ha.Entity
	done chan struct{}
}

// trackerSet is one generation of composite trackers, replaced wholesale on
// reload.
type trackerSet struct {
	runners  []*runner
	byEntity map[string][]*runner
	topics   []string
	tx       *transmission.MQTTTransmitter
}

// topicSet returns the set's subscription topics as a lookup set.
func (s *trackerSet) topicSet() map[string]bool {
	m := make(map[string]bool, len(s.topics))
	for _, t := range s.topics {
		m[t] = true
	}
	return m
}

// topicsToDrop returns the topics not kept by the next generation. Broker
// subscriptions are not reference-counted, so a topic both generations use
// must never be unsubscribed during the handover.
func topicsToDrop(topics []string, keep map[string]bool) []string {
	var drop []string
	for _, t := range topics {
		if !keep[t] {
			drop = append(drop, t)
		}
	}
	return drop
}

type app struct {
	cfg    *config.Config
	client *mqtt.Client
	store  *store.Store
	cache  *cache.Manager
	logger *logrus.Logger
}

// Run launches the bridge and blocks until ctx is cancelled.
func Run(parentCtx context.Context, cfg *config.Config, client *mqtt.Client, st *store.Store, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	a := &app{
		cfg:    cfg,
		client: client,
		store:  st,
		cache:  cache.NewManager(),
		logger: logger,
	}

	messageBus := bus.New(logger)
	reload := make(chan struct{}, 1)

	// Source updates land on the bus from the MQTT callback goroutines.
	ingest := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		entity, err := a.parseSourceUpdate(msg)
		if err != nil {
			logger.WithError(err).WithField("topic", msg.Topic()).Debug("Dropping unparsable source update")
			return
		}
		messageBus.Publish(entity)
	}

	if err := client.Subscribe(client.GetReloadTopic(), func(_ pahomqtt.Client, _ pahomqtt.Message) {
		select {
		case reload <- struct{}{}:
		default:
		}
	}); err != nil {
		return err
	}

	set, err := a.buildTrackers(ingest, nil)
	if err != nil {
		return err
	}

	if err := set.tx.TransmitAvailability(true); err != nil {
		logger.WithError(err).Warn("Failed to publish availability")
	}

	grp, ctx := errgroup.WithContext(ctx)

	// SIGHUP is an alternative reload trigger for non-MQTT automation.
	grp.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-hup:
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		}
	})

	// Router: the single owner of the tracker set.
	sub := messageBus.Subscribe()
	grp.Go(func() error {
		defer func() { a.stopTrackers(set, nil) }()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-reload:
				logger.Info("Reloading tracker configuration")
				next, err := a.buildTrackers(ingest, set.topicSet())
				if err != nil {
					// Keep running with the previous configuration.
					logger.WithError(err).Error("Reload failed; keeping current trackers")
					continue
				}
				// Topics shared with the new set must stay subscribed.
				a.stopTrackers(set, next.topicSet())
				set = next
			case e, ok := <-sub:
				if !ok {
					return nil
				}
				for _, r := range set.byEntity[e.EntityID] {
					r.ch <- e
				}
			}
		}
	})

	err = grp.Wait()

	if txErr := set.tx.TransmitAvailability(false); txErr != nil {
		logger.WithError(txErr).Debug("Failed to publish offline availability")
	}
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// parseSourceUpdate decodes one MQTT message into an entity state. The
// entity ID defaults to the last topic segment when the payload omits it.
func (a *app) parseSourceUpdate(msg pahomqtt.Message) (*ha.Entity, error) {
	var entity ha.Entity
	if err := json.Unmarshal(msg.Payload(), &entity); err != nil {
		return nil, err
	}
	if entity.EntityID == "" {
		topic := msg.Topic()
		entity.EntityID = topic[strings.LastIndexByte(topic, '/')+1:]
	}
	return &entity, nil
}

// buildTrackers reads the trackers file and constructs a fresh tracker set:
// new composite instances, restored state, fresh position history, and
// source-topic subscriptions. Subscribing a topic the active set already uses
// is harmless (same handler); active guards the failure cleanup against
// unsubscribing topics the running set still needs.
func (a *app) buildTrackers(ingest pahomqtt.MessageHandler, active map[string]bool) (*trackerSet, error) {
	file, err := config.Load(a.cfg.TrackersFile)
	if err != nil {
		return nil, err
	}

	locator := zones.New(file.Zones)
	set := &trackerSet{
		byEntity: make(map[string][]*runner),
		tx:       transmission.NewMQTTTransmitter(a.client, a.cfg.DiscoveryPrefix, file.UnitSystem, a.logger),
	}

	seenTopics := make(map[string]bool)
	for _, tc := range file.Trackers {
		tr := tracker.New(tc, file.UnitSystem, locator, time.Local, a.logger)

		if a.store != nil {
			if saved, err := a.store.Load(tr.ID()); err != nil {
				a.logger.WithError(err).WithField("tracker", tr.ID()).Warn("Failed to load persisted state")
			} else if saved != nil {
				tr.Restore(*saved)
				if err := set.tx.TransmitState(tr.ID(), tr.Name(), tr.State()); err != nil {
					a.logger.WithError(err).WithField("tracker", tr.ID()).Warn("Failed to publish restored state")
				}
			}
		}

		r := &runner{
			t:    tr,
			ch:   make(chan *ha.Entity, config.TrackerQueueDepth),
			done: make(chan struct{}),
		}
		set.runners = append(set.runners, r)
		for _, s := range tc.Sources {
			set.byEntity[s.Entity] = append(set.byEntity[s.Entity], r)
			topic := a.cfg.SourcePrefix + "/" + s.Entity
			if !seenTopics[topic] {
				seenTopics[topic] = true
				set.topics = append(set.topics, topic)
			}
		}
		go a.runTracker(r, set.tx)
	}

	for _, topic := range set.topics {
		if err := a.client.Subscribe(topic, ingest); err != nil {
			a.stopTrackers(set, active)
			return nil, err
		}
	}

	a.logger.WithFields(logrus.Fields{
		"trackers": len(set.runners),
		"sources":  len(set.topics),
	}).Info("Tracker set ready")
	return set, nil
}

// runTracker drains one tracker's queue. This goroutine is the only mutator
// of the tracker's state.
func (a *app) runTracker(r *runner, tx *transmission.MQTTTransmitter) {
	defer close(r.done)
	id, name := r.t.ID(), r.t.Name()
	for e := range r.ch {
		res := r.t.Process(e)

		if a.cache.Changed(id, res.State) {
			if err := tx.TransmitState(id, name, res.State); err != nil {
				a.logger.WithError(err).WithField("tracker", id).Warn("State transmit failed")
			}
			if a.store != nil {
				if err := a.store.Save(id, res.State); err != nil {
					a.logger.WithError(err).WithField("tracker", id).Warn("State persist failed")
				}
			}
		}
		if res.PublishSpeed {
			if err := tx.TransmitSpeed(id, name, res.Speed); err != nil {
				a.logger.WithError(err).WithField("tracker", id).Warn("Speed transmit failed")
			}
		}
	}
}

// stopTrackers tears one generation down: unsubscribes its topics (except
// those in keep, which the next generation has re-subscribed), closes the
// queues and waits for the runners to drain.
func (a *app) stopTrackers(set *trackerSet, keep map[string]bool) {
	if drop := topicsToDrop(set.topics, keep); len(drop) > 0 {
		if err := a.client.Unsubscribe(drop...); err != nil {
			a.logger.WithError(err).Debug("Unsubscribe failed")
		}
	}
	for _, r := range set.runners {
		close(r.ch)
	}
	for _, r := range set.runners {
		<-r.done
		a.cache.Forget(r.t.ID())
	}
}
