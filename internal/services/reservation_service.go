package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/localnerve/portsmith/internal/allocator"
	"github.com/localnerve/portsmith/internal/config"
	"github.com/localnerve/portsmith/internal/events"
	"github.com/localnerve/portsmith/internal/metrics"
	"github.com/localnerve/portsmith/internal/store"
	"github.com/localnerve/portsmith/internal/types"
)

// ReservationStore is the persistence the service runs its operations against.
// *store.Store implements it.
type ReservationStore interface {
	Exists(ctx context.Context, port int) (bool, error)
	Get(ctx context.Context, port int) (*store.Reservation, error)
	Create(ctx context.Context, port int, data store.Data) error
	Replace(ctx context.Context, port int, data store.Data) error
	Release(ctx context.Context, port int) (bool, error)
	ApplyPatch(ctx context.Context, port int, patch store.Patch) error
	CreateNext(ctx context.Context, pick func(reserved []int) (int, error), data store.Data) (int, error)
	ListPorts(ctx context.Context) ([]int, error)
	FindByTags(ctx context.Context, tags []string) ([]int, error)
	Details(ctx context.Context, ports []int) (map[int]store.Reservation, error)
}

// Detail is the annotation set of one port in a detailed discovery
type Detail struct {
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties"`
}

// Discovery is the result of a discover call. Detailed is nil unless requested.
type Discovery struct {
	Ports    []int
	Detailed map[int]Detail
}

// ReservationService runs the reservation lifecycle: reserve, modify, patch,
// release and reserve-next, plus the read side used for discovery.
type ReservationService struct {
	store     ReservationStore
	publisher events.Publisher
	metrics   *metrics.Metrics

	floor    int
	ceiling  int
	attempts int
}

// NewReservationService creates the service. A nil publisher disables events and
// nil metrics disables counting.
func NewReservationService(st ReservationStore, cfg *config.Config, publisher events.Publisher, m *metrics.Metrics) *ReservationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	floor := cfg.PortFloor
	if floor == 0 {
		floor = allocator.DefaultFloor
	}
	ceiling := cfg.PortCeiling
	if ceiling == 0 {
		ceiling = allocator.MaxPort
	}
	return &ReservationService{
		store:     st,
		publisher: publisher,
		metrics:   m,
		floor:     floor,
		ceiling:   ceiling,
		attempts:  max(cfg.ReserveNextAttempts, 1),
	}
}

// IsReserved reports whether port is reserved
func (s *ReservationService) IsReserved(ctx context.Context, port int) (bool, error) {
	if err := validatePort(port); err != nil {
		return false, err
	}
	return s.store.Exists(ctx, port)
}

// Get returns the reservation of port, or types.ErrNotReserved
func (s *ReservationService) Get(ctx context.Context, port int) (*store.Reservation, error) {
	if err := validatePort(port); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, port)
}

// Reserve claims a free port
func (s *ReservationService) Reserve(ctx context.Context, port int, data store.Data) (err error) {
	defer func() { s.metrics.Observe("reserve", err) }()

	if err = validatePort(port); err != nil {
		return err
	}
	if err = s.store.Create(ctx, port, data); err != nil {
		return err
	}
	s.publish(ctx, events.Reserved, port, data.Tags, data.Properties)
	return nil
}

// Modify replaces the tags and properties of a reserved port in one step
func (s *ReservationService) Modify(ctx context.Context, port int, data store.Data) (err error) {
	defer func() { s.metrics.Observe("modify", err) }()

	if err = validatePort(port); err != nil {
		return err
	}
	if err = s.store.Replace(ctx, port, data); err != nil {
		return err
	}
	s.publish(ctx, events.Modified, port, data.Tags, data.Properties)
	return nil
}

// Patch applies property and tag deltas to a reserved port
func (s *ReservationService) Patch(ctx context.Context, port int, patch store.Patch) (err error) {
	defer func() { s.metrics.Observe("patch", err) }()

	if err = validatePort(port); err != nil {
		return err
	}
	if err = s.store.ApplyPatch(ctx, port, patch); err != nil {
		return err
	}

	// The event carries the state after the patch when it can still be read
	if r, getErr := s.store.Get(ctx, port); getErr == nil {
		s.publish(ctx, events.Patched, port, r.Tags, r.Properties)
	} else {
		s.publish(ctx, events.Patched, port, nil, nil)
	}
	return nil
}

// Release frees a reserved port, failing with types.ErrNotReserved when it is already free
func (s *ReservationService) Release(ctx context.Context, port int) (err error) {
	defer func() { s.metrics.Observe("release", err) }()

	if err = validatePort(port); err != nil {
		return err
	}
	released, err := s.store.Release(ctx, port)
	if err != nil {
		return err
	}
	if !released {
		return types.ErrNotReserved
	}
	s.publish(ctx, events.Released, port, nil, nil)
	return nil
}

// NextUnreserved reports the port ReserveNext would hand out now, without reserving it
func (s *ReservationService) NextUnreserved(ctx context.Context) (port int, err error) {
	defer func() { s.metrics.Observe("next_unreserved", err) }()

	reserved, err := s.store.ListPorts(ctx)
	if err != nil {
		return 0, err
	}
	return s.pick(reserved)
}

// ReserveNext reserves the lowest free port at or above the floor and returns it.
// A caller that loses the race for a port tries again with a fresh computation,
// up to the configured number of attempts.
func (s *ReservationService) ReserveNext(ctx context.Context, data store.Data) (port int, err error) {
	defer func() { s.metrics.Observe("reserve_next", err) }()

	for attempt := 1; attempt <= s.attempts; attempt++ {
		port, err = s.store.CreateNext(ctx, s.pick, data)
		if !errors.Is(err, types.ErrAlreadyReserved) {
			break
		}
		log.Printf("reserve_next: lost race for port, attempt %d of %d", attempt, s.attempts)
	}
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.Reserved, port, data.Tags, data.Properties)
	return port, nil
}

// Discover lists reserved ports carrying all of tags, ascending. With detailed set the
// tags and properties of every listed port are loaded too.
func (s *ReservationService) Discover(ctx context.Context, tags []string, detailed bool) (result *Discovery, err error) {
	defer func() { s.metrics.Observe("discover", err) }()

	ports, err := s.store.FindByTags(ctx, tags)
	if err != nil {
		return nil, err
	}
	result = &Discovery{Ports: ports}
	if !detailed {
		return result, nil
	}

	found, err := s.store.Details(ctx, ports)
	if err != nil {
		return nil, err
	}
	result.Detailed = make(map[int]Detail, len(found))
	for port, r := range found {
		result.Detailed[port] = Detail{Tags: r.Tags, Properties: r.Properties}
	}
	return result, nil
}

func (s *ReservationService) pick(reserved []int) (int, error) {
	return allocator.NextAvailableInRange(reserved, s.floor, s.ceiling)
}

func (s *ReservationService) publish(ctx context.Context, eventType string, port int, tags []string, properties map[string]string) {
	// Errors are logged by the publisher; the reservation is already committed
	_ = s.publisher.Publish(ctx, events.Event{
		Type:       eventType,
		Port:       port,
		Tags:       tags,
		Properties: properties,
		At:         time.Now().UTC(),
	})
}

func validatePort(port int) error {
	if port < allocator.MinPort || port > allocator.MaxPort {
		return fmt.Errorf("%w: port %d outside %d-%d", types.ErrMalformedInput, port, allocator.MinPort, allocator.MaxPort)
	}
	return nil
}
