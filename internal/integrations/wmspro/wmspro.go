package wmspro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/coordinator"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/integration"
)

// DomainName is the integration domain.
const DomainName = "wmspro"

// pollIdle is the poll interval while nothing is driving.
const pollIdle = 30 * time.Second

// pollMoving is the poll interval while a destination is driving,
// realised as extra refresh requests on top of the idle ticker.
const pollMoving = 5 * time.Second

// httpTimeout bounds individual hub requests.
const httpTimeout = 10 * time.Second

// Integration exposes Warema WMS products behind a WebControl pro hub.
type Integration struct{}

// New creates the wmspro integration.
func New() *Integration { return &Integration{} }

// Domain returns the integration domain.
func (*Integration) Domain() string { return DomainName }

// FlowHandler returns the hub address config flow.
func (*Integration) FlowHandler(host *integration.Host) flow.Handler {
	return &flowHandler{host: host}
}

// cover is one drivable destination with its resolved actions.
type cover struct {
	dest    Destination
	percent Action
	stop    *Action
}

// Setup pings the hub, reads its configuration and starts polling the
// drivable destinations.
func (*Integration) Setup(ctx context.Context, host *integration.Host, entry *configentry.ConfigEntry) (integration.Runtime, error) {
	client := NewClient(entry.Data.GetString("host"), host.NewHTTPClient(httpTimeout))

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", configentry.ErrNotReady, err)
	}
	cfg, err := client.Configuration(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", configentry.ErrNotReady, err)
	}

	covers := drivableCovers(cfg)
	if len(covers) == 0 {
		return nil, fmt.Errorf("%w: hub has no drivable destinations", configentry.ErrNotReady)
	}

	rt := &runtime{
		host:      host,
		entry:     entry,
		client:    client,
		covers:    covers,
		positions: make(map[int]int),
		logger:    host.Logger.With("component", "wmspro", "entry_id", entry.ID),
	}

	ids := make([]int, 0, len(covers))
	for _, c := range covers {
		ids = append(ids, c.dest.ID)
	}

	rt.coord = coordinator.New(coordinator.Options[map[int]DestinationStatus]{
		Name: DomainName,
		Fetch: func(ctx context.Context) (map[int]DestinationStatus, error) {
			return client.Status(ctx, ids)
		},
		Interval:             pollIdle,
		Logger:               host.Logger,
		OnAvailabilityChange: rt.setAllAvailability,
	})
	rt.coord.AddListener(rt.applyStatus)

	if err := rt.coord.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", configentry.ErrNotReady, err)
	}
	return rt, nil
}

// drivableCovers filters the configuration down to awning and roller
// shutter destinations with a percentage drive.
func drivableCovers(cfg *Configuration) []cover {
	var covers []cover
	for _, d := range cfg.Destinations {
		if d.AnimationType != AnimationAwning && d.AnimationType != AnimationRollerShutter {
			continue
		}
		percent, ok := d.ActionOfType(ActionTypePercentage)
		if !ok {
			continue
		}
		c := cover{dest: d, percent: percent}
		if stop, ok := d.ActionOfType(ActionTypeStop); ok {
			c.stop = &stop
		}
		covers = append(covers, c)
	}
	return covers
}

type runtime struct {
	host   *integration.Host
	entry  *configentry.ConfigEntry
	client *Client
	covers []cover
	coord  *coordinator.Coordinator[map[int]DestinationStatus]
	logger *logging.Logger

	mu        sync.Mutex
	positions map[int]int // last seen hub-scale position per destination
	moveTimer *time.Timer
	closed    bool
}

func destUniqueID(destinationID int) string {
	return fmt.Sprintf("dest_%d", destinationID)
}

func deviceClassFor(animationType int) entity.DeviceClass {
	if animationType == AnimationAwning {
		return entity.ClassAwning
	}
	return entity.ClassShutter
}

// applyStatus registers covers on first sight and writes positions.
// Movement is inferred from position deltas between polls: while
// anything is driving, extra refreshes run at the fast interval.
func (rt *runtime) applyStatus(statuses map[int]DestinationStatus) {
	ctx := context.Background()
	anyMoving := false

	for _, c := range rt.covers {
		status, ok := statuses[c.dest.ID]
		if !ok {
			continue
		}
		hubPos, ok := status.Position(c.percent.ID)
		if !ok {
			continue
		}

		moving := rt.trackMovement(c.dest.ID, hubPos)
		if moving != entity.CoverIdle {
			anyMoving = true
		}

		stored, err := rt.host.Entities.Upsert(ctx, &entity.Entity{
			EntryID:     rt.entry.ID,
			UniqueID:    destUniqueID(c.dest.ID),
			Name:        c.dest.Name(),
			Platform:    entity.PlatformCover,
			DeviceClass: deviceClassFor(c.dest.AnimationType),
			Device:      entity.DeviceInfo{Manufacturer: "Warema", Model: "WMS"},
		})
		if err != nil {
			rt.logger.Warn("registering cover", "destination", c.dest.ID, "error", err)
			continue
		}

		// The hub reports 0 fully open and 100 fully closed; cover
		// positions are the other way up.
		state := entity.State{
			"position": 100 - hubPos,
			"moving":   moving,
		}
		if err := rt.host.Writer.SetState(ctx, stored.ID, state); err != nil {
			rt.logger.Warn("writing cover state", "entity_id", stored.ID, "error", err)
			continue
		}
		if err := rt.host.Writer.SetAvailability(ctx, stored.ID, !status.Data.HeartbeatError); err != nil {
			rt.logger.Warn("writing cover availability", "entity_id", stored.ID, "error", err)
		}
	}

	if anyMoving {
		rt.scheduleMovingPoll()
	}
}

// trackMovement compares the position against the previous poll and
// returns the movement state.
func (rt *runtime) trackMovement(destinationID, hubPos int) string {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	prev, seen := rt.positions[destinationID]
	rt.positions[destinationID] = hubPos
	if !seen || prev == hubPos {
		return entity.CoverIdle
	}
	if hubPos < prev {
		return entity.CoverOpening
	}
	return entity.CoverClosing
}

// scheduleMovingPoll arms one fast refresh. Each poll that still sees
// movement re-arms it, so driving covers update every few seconds.
func (rt *runtime) scheduleMovingPoll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return
	}
	if rt.moveTimer != nil {
		rt.moveTimer.Stop()
	}
	rt.moveTimer = time.AfterFunc(pollMoving, rt.coord.RequestRefresh)
}

func (rt *runtime) setAllAvailability(available bool) {
	ctx := context.Background()
	for _, e := range rt.host.Entities.ListByEntry(rt.entry.ID) {
		if err := rt.host.Writer.SetAvailability(ctx, e.ID, available); err != nil {
			rt.logger.Warn("writing cover availability", "entity_id", e.ID, "error", err)
		}
	}
}

// HandleCommand drives a cover: set_position, open, close and stop.
func (rt *runtime) HandleCommand(ctx context.Context, entityID string, command map[string]any) error {
	e, err := rt.host.Entities.Get(entityID)
	if err != nil {
		return err
	}

	c, ok := rt.coverFor(e.UniqueID)
	if !ok {
		return fmt.Errorf("%w: entity %s accepts no commands", integration.ErrUnknownCommand, entityID)
	}

	action, _ := command["action"].(string)
	switch action {
	case "set_position":
		value, ok := command["position"].(float64)
		if !ok {
			return fmt.Errorf("%w: set_position needs a position", integration.ErrUnknownCommand)
		}
		return rt.drive(ctx, c, int(value))
	case "open":
		return rt.drive(ctx, c, 100)
	case "close":
		return rt.drive(ctx, c, 0)
	case "stop":
		if c.stop == nil {
			return fmt.Errorf("%w: destination %d cannot stop", integration.ErrUnknownCommand, c.dest.ID)
		}
		if err := rt.client.Stop(ctx, c.dest.ID, c.stop.ID); err != nil {
			return err
		}
		rt.coord.RequestRefresh()
		return nil
	default:
		return fmt.Errorf("%w: %q", integration.ErrUnknownCommand, action)
	}
}

// drive moves the cover to a 0-100 open position, converting to the
// hub's inverted scale and clamping.
func (rt *runtime) drive(ctx context.Context, c cover, position int) error {
	if position < 0 {
		position = 0
	} else if position > 100 {
		position = 100
	}

	if err := rt.client.Drive(ctx, c.dest.ID, c.percent.ID, 100-position); err != nil {
		return err
	}

	rt.scheduleMovingPoll()
	rt.coord.RequestRefresh()
	return nil
}

func (rt *runtime) coverFor(uniqueID string) (cover, bool) {
	for _, c := range rt.covers {
		if destUniqueID(c.dest.ID) == uniqueID {
			return c, true
		}
	}
	return cover{}, false
}

// Close stops polling and any pending fast refresh.
func (rt *runtime) Close(_ context.Context) error {
	rt.mu.Lock()
	rt.closed = true
	if rt.moveTimer != nil {
		rt.moveTimer.Stop()
	}
	rt.mu.Unlock()

	rt.coord.Stop()
	return nil
}
