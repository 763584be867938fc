package touch

import (
	"time"

	fx "github.com/robotalks/nv.go/pkg/framework"
)

// Panel is a touch panel controller.
type Panel interface {
	// Touched reports whether the panel is pressed.
	Touched() bool
	// Point returns the raw position of the press.
	Point() Point
}

// DefaultPollInterval is the minimum time between two panel reads.
const DefaultPollInterval = 400 * time.Millisecond

// Poller reads a Panel on the control loop and feeds a Dispatcher.
type Poller struct {
	Panel         Panel
	Dispatcher    *Dispatcher
	Calibration   Calibration
	Width, Height int
	Interval      time.Duration

	current  Screen
	lastPoll time.Time
}

// NewPoller creates a Poller for a width x height display showing Home.
func NewPoller(panel Panel, d *Dispatcher, width, height int) *Poller {
	return &Poller{
		Panel:       panel,
		Dispatcher:  d,
		Calibration: DefaultCalibration,
		Width:       width,
		Height:      height,
		Interval:    DefaultPollInterval,
	}
}

// Current returns the current screen.
func (p *Poller) Current() Screen { return p.current }

// SetCurrent changes the current screen without drawing it.
func (p *Poller) SetCurrent(s Screen) { p.current = s }

// Control implements framework.Controller.
func (p *Poller) Control(cc fx.ControlContext) error {
	now := cc.Time()
	if !p.lastPoll.IsZero() && now.Sub(p.lastPoll) < p.Interval {
		return nil
	}
	p.lastPoll = now
	if !p.Panel.Touched() {
		return nil
	}
	pt := p.Calibration.Map(p.Panel.Point(), p.Width, p.Height)
	p.current = p.Dispatcher.Touch(pt, p.current)
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (p *Poller) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvInput, p)
}
