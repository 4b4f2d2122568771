// Package app wires together configuration, the source client, the local
// store and the layers built on it into a single Deps struct that commands
// receive at runtime.
package app

import (
	"fmt"

	"github.com/ugagro/greenwatch/internal/config"
	"github.com/ugagro/greenwatch/internal/poller"
	"github.com/ugagro/greenwatch/internal/series"
	"github.com/ugagro/greenwatch/internal/source"
	"github.com/ugagro/greenwatch/internal/state"
	"github.com/ugagro/greenwatch/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store, Series and Prefs are nil until RequireStore is called.
type Deps struct {
	Config *config.Config
	Client *source.Client
	Store  *store.Store
	Series *series.Store
	Prefs  *state.Store
}

// New builds a Deps from resolved config. The database is opened lazily.
func New(cfg *config.Config) *Deps {
	client := source.NewClient(
		cfg.Endpoint,
		cfg.Timeout,
		cfg.Rate,
		cfg.Debug,
	)
	return &Deps{
		Config: cfg,
		Client: client,
	}
}

// RequireStore opens the local database if it is not already open.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	d.Store = s
	d.Series = series.New(s, d.Config.Cap)
	d.Prefs = state.New(s)
	return nil
}

// Ingestor returns an ingestor writing to the series history and
// publishing to sink. RequireStore must have succeeded.
func (d *Deps) Ingestor(sink poller.Sink) *poller.Ingestor {
	return poller.NewIngestor(d.Series, sink, d.Config.Policy)
}

// Subscriber builds the MQTT subscriber from config.
func (d *Deps) Subscriber() (*source.Subscriber, error) {
	return source.NewSubscriber(source.SubscriberConfig{
		Broker:         d.Config.MQTTBroker,
		Topic:          d.Config.MQTTTopic,
		ClientID:       d.Config.MQTTClientID,
		ConnectTimeout: d.Config.Timeout,
	})
}

// Close releases the database if it was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store, d.Series, d.Prefs = nil, nil, nil
	return err
}
