package travel

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"
)

const metersPerMile = 1609.34

// Oracle estimates drive time between two addresses. Implementations never
// fail: when no estimate is possible they return a fallback leg.
type Oracle interface {
	Estimate(ctx context.Context, origin, destination string) domain.TravelLeg
}

// Fallback is the leg used whenever the provider cannot answer.
func Fallback(bufferMinutes int) domain.TravelLeg {
	return domain.TravelLeg{Minutes: bufferMinutes, Miles: 0, Fallback: true}
}

// StaticOracle answers every query with the same leg. Used when no maps key
// is configured.
type StaticOracle struct {
	Leg domain.TravelLeg
}

func (s StaticOracle) Estimate(context.Context, string, string) domain.TravelLeg {
	return s.Leg
}

type MapsOracle struct {
	client   *maps.Client
	fallback domain.TravelLeg
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewMapsOracle(apiKey string, bufferMinutes int, timeout time.Duration, log logrus.FieldLogger, opts ...maps.ClientOption) (*MapsOracle, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &MapsOracle{
		client:   client,
		fallback: Fallback(bufferMinutes),
		timeout:  timeout,
		log:      log,
	}, nil
}

func (o *MapsOracle) Estimate(ctx context.Context, origin, destination string) domain.TravelLeg {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return o.fallback
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:       []string{origin},
		Destinations:  []string{destination},
		Units:         maps.UnitsImperial,
		DepartureTime: "now",
	})
	if err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"origin":      origin,
			"destination": destination,
		}).Warn("distance matrix failed, using fallback buffer")
		return o.fallback
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return o.fallback
	}
	el := resp.Rows[0].Elements[0]
	if el == nil || el.Status != "OK" {
		return o.fallback
	}

	miles := float64(el.Distance.Meters) / metersPerMile
	d := el.DurationInTraffic
	if d <= 0 {
		d = el.Duration
	}
	if d <= 0 {
		leg := o.fallback
		leg.Miles = miles
		return leg
	}
	return domain.TravelLeg{
		Minutes: int(math.Ceil(d.Minutes())),
		Miles:   miles,
	}
}

// LegCache stores provider answers between queries.
type LegCache interface {
	GetTravelLeg(ctx context.Context, origin, destination string) (domain.TravelLeg, bool, error)
	SetTravelLeg(ctx context.Context, origin, destination string, leg domain.TravelLeg) error
}

type CachedOracle struct {
	next  Oracle
	cache LegCache
	log   logrus.FieldLogger
}

func NewCachedOracle(next Oracle, cache LegCache, log logrus.FieldLogger) *CachedOracle {
	return &CachedOracle{next: next, cache: cache, log: log}
}

func (c *CachedOracle) Estimate(ctx context.Context, origin, destination string) domain.TravelLeg {
	leg, ok, err := c.cache.GetTravelLeg(ctx, origin, destination)
	if err != nil {
		c.log.WithError(err).Debug("travel cache read failed")
	}
	if ok {
		return leg
	}

	leg = c.next.Estimate(ctx, origin, destination)
	if leg.Fallback {
		return leg
	}
	if err := c.cache.SetTravelLeg(ctx, origin, destination, leg); err != nil {
		c.log.WithError(err).Debug("travel cache write failed")
	}
	return leg
}

var (
	_ Oracle = StaticOracle{}
	_ Oracle = (*MapsOracle)(nil)
	_ Oracle = (*CachedOracle)(nil)
)
