package telemetry

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/nv.go/pkg/framework"
	"github.com/robotalks/nv.go/pkg/nv"
)

// Publisher sends a message to a topic, implemented by mqtt.Queue.
type Publisher interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Source is the state a Reporter observes, implemented by nv.Store.
type Source interface {
	Size() int
	Committed() bool
	Valid() bool
	Stats() nv.Stats
}

// DefaultInterval is the default minimum time between two reports.
const DefaultInterval = time.Second

// Reporter publishes the Status of a Source, retained, to
// "<device>/status" when it changed since the last report.
type Reporter struct {
	Source    Source
	Publisher Publisher
	Device    string
	Media     string
	Interval  time.Duration
	Metrics   *Metrics

	last     *Status
	lastTime time.Time

	validity bool
	checked  bool
	flushed  uint64
}

// Topic is where the status is published.
func (r *Reporter) Topic() string {
	return r.Device + "/status"
}

// Snapshot captures the current Status. The image is only verified again
// when bytes were flushed since the previous check.
func (r *Reporter) Snapshot() *Status {
	st := r.Source.Stats()
	return &Status{
		Device:    r.Device,
		Media:     r.Media,
		Size:      uint32(r.Source.Size()),
		Committed: r.Source.Committed(),
		Valid:     r.valid(st),
		Pending:   uint32(st.Pending),
		Counters:  CountersOf(st),
	}
}

func (r *Reporter) valid(st nv.Stats) bool {
	if !r.checked || st.Flushed != r.flushed {
		r.validity, r.flushed, r.checked = r.Source.Valid(), st.Flushed, true
	}
	return r.validity
}

// Control implements framework.Controller.
func (r *Reporter) Control(cc fx.ControlContext) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := cc.Time()
	if !r.lastTime.IsZero() && now.Sub(r.lastTime) < interval {
		return nil
	}
	r.lastTime = now
	if r.Metrics != nil {
		r.Metrics.Record(cc.Context(), r.Source.Stats())
	}
	status := r.Snapshot()
	if r.last != nil && proto.Equal(r.last, status) {
		return nil
	}
	if err := r.publish(status); err != nil {
		return err
	}
	r.last = status
	return nil
}

func (r *Reporter) publish(status *Status) error {
	if r.Publisher == nil {
		return nil
	}
	data, err := Encode(status)
	if err != nil {
		return err
	}
	token := r.Publisher.PubWith(r.Topic(), data, 1, true)
	glog.V(2).Infof("PUB %s committed=%v valid=%v pending=%d",
		r.Topic(), status.Committed, status.Valid, status.Pending)
	go func() {
		if token.Wait() && token.Error() != nil {
			glog.Errorf("publish %s error: %v", r.Topic(), token.Error())
		}
	}()
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (r *Reporter) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvReport, r)
}
