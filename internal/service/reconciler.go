package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// InventoryViewer yields shows together with the seats their confirmed
// bookings hold, read as one consistent snapshot.
type InventoryViewer interface {
	InventoryView() ([]model.Show, map[uint64]int)
}

// Drift describes a show whose counters disagree with its bookings.
type Drift struct {
	ShowID         uint64 `json:"showId"`
	Capacity       int    `json:"capacity"`
	SeatsAvailable int    `json:"seatsAvailable"`
	Confirmed      int    `json:"confirmed"`
}

func (d Drift) String() string {
	return fmt.Sprintf("show %d: seatsAvailable %d + confirmed %d != capacity %d",
		d.ShowID, d.SeatsAvailable, d.Confirmed, d.Capacity)
}

// Reconciler periodically audits seatsAvailable + confirmed seats ==
// capacity for every show.  A booking in flight can be seen between its
// reservation and its record write, so a drift is only reported as an
// error once two consecutive audits observe the same numbers.
type Reconciler struct {
	view     InventoryViewer
	log      *log.Logger
	interval time.Duration

	mu        sync.Mutex
	last      map[uint64]Drift
	reported  []Drift
	scheduler gocron.Scheduler
}

func NewReconciler(view InventoryViewer, interval time.Duration, logger *log.Logger) *Reconciler {
	return &Reconciler{view: view, interval: interval, log: logger, last: map[uint64]Drift{}}
}

// Check runs one audit and returns the drifts that persisted since the
// previous audit.
func (r *Reconciler) Check() []Drift {
	shows, held := r.view.InventoryView()

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uint64]Drift)
	var persistent []Drift
	for _, sh := range shows {
		d := Drift{ShowID: sh.ID, Capacity: sh.Capacity, SeatsAvailable: sh.SeatsAvailable, Confirmed: held[sh.ID]}
		if d.SeatsAvailable+d.Confirmed == d.Capacity {
			continue
		}
		seen[sh.ID] = d
		if prev, ok := r.last[sh.ID]; ok && prev == d {
			persistent = append(persistent, d)
			r.log.Errorj(log.JSON{"msg": "inventory drift", "show_id": d.ShowID, "detail": d.String()})
			continue
		}
		r.log.Warnj(log.JSON{"msg": "inventory drift observed, rechecking next run", "show_id": d.ShowID, "detail": d.String()})
	}
	r.last = seen
	r.reported = persistent
	return persistent
}

// Drifts returns what the latest audit reported without running a new one.
func (r *Reconciler) Drifts() []Drift {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Drift(nil), r.reported...)
}

// Start schedules Check every interval.  Overlapping runs are skipped.
func (r *Reconciler) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("reconciler scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.Check() }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("inventory-reconcile"),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("reconciler job: %w", err)
	}
	r.mu.Lock()
	r.scheduler = s
	r.mu.Unlock()
	s.Start()
	r.log.Infoj(log.JSON{"msg": "inventory reconciler started", "interval": r.interval.String()})
	return nil
}

// Stop shuts the scheduler down, waiting for a running audit.
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	s := r.scheduler
	r.scheduler = nil
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Shutdown()
}
