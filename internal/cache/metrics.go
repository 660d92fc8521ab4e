package cache

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "txledger",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
	cacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "txledger",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Number of invalidate-all calls",
		},
	)
	cacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "txledger",
			Subsystem: "cache",
			Name:      "stores_total",
			Help:      "Cache populations by outcome (ok, error)",
		},
		[]string{"result"},
	)
)

type instrumented struct {
	next Cache
}

// Instrument wraps c with Prometheus counters.
func Instrument(c Cache) Cache { return &instrumented{next: c} }

func (i *instrumented) Ticket(ctx context.Context) (Ticket, error) { return i.next.Ticket(ctx) }

func (i *instrumented) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	e, ok, err := i.next.Lookup(ctx, key)
	switch {
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
	case ok:
		cacheLookups.WithLabelValues("hit").Inc()
	default:
		cacheLookups.WithLabelValues("miss").Inc()
	}
	return e, ok, err
}

func (i *instrumented) Store(ctx context.Context, t Ticket, key Key, e Entry) error {
	if err := i.next.Store(ctx, t, key, e); err != nil {
		cacheStores.WithLabelValues("error").Inc()
		return err
	}
	cacheStores.WithLabelValues("ok").Inc()
	return nil
}

func (i *instrumented) InvalidateAll(ctx context.Context) error {
	cacheInvalidations.Inc()
	return i.next.InvalidateAll(ctx)
}
