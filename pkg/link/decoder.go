package link

// State is the sync state of one direction of the link.
type State int

// States, Ready and Receiving may be combined.
const (
	StateSyncing   State = 0
	StateReady     State = 0x01
	StateReceiving State = 0x02
)

// Ready reports whether frames can be exchanged.
func (s State) Ready() bool { return s&StateReady != 0 }

// Receiving reports whether a sync handshake or a frame is half received.
func (s State) Receiving() bool { return s&StateReceiving != 0 }

func (s State) String() string {
	switch {
	case s.Ready() && s.Receiving():
		return "receiving"
	case s.Ready():
		return "ready"
	case s.Receiving():
		return "handshake"
	}
	return "syncing"
}

const (
	ctlREQ byte = 0xff
	ctlACK byte = 0xfe
)

// Step is the outcome of feeding one event to the Decoder.
type Step struct {
	// Control is a sync byte to send to the peer, 0 for none.
	Control byte
	State   State
	Frame   *Frame
}

type timerAction int

const (
	timerKeep timerAction = iota
	timerArm
	timerDisarm
)

func (s Step) timer() timerAction {
	switch {
	case s.State.Receiving() || s.Control == ctlREQ:
		return timerArm
	case s.State.Ready():
		return timerDisarm
	}
	return timerKeep
}

type phase int

const (
	phaseAwaitAck   phase = iota // sync request sent
	phaseReqSeq                  // peer sync request, its seq follows
	phaseAckSeq                  // peer sync ack, its seq follows
	phaseIdle                    // synced, between frames
	phaseIdleAckSeq              // repeated ack while synced
	phaseCode
	phaseLen
	phaseData
)

// Decoder turns received bytes into frames and sync actions.
// The zero value expects a sync handshake.
type Decoder struct {
	peer  Seq
	phase phase
	frame *Frame
	got   int
}

// State returns the current sync state.
func (d *Decoder) State() State {
	switch {
	case d.phase == phaseAwaitAck:
		return StateSyncing
	case d.phase == phaseIdle:
		return StateReady
	case d.phase > phaseIdle:
		return StateReady | StateReceiving
	}
	return StateReceiving
}

// Restart drops any partial frame and asks the peer to resync.
func (d *Decoder) Restart() Step {
	d.frame = nil
	return d.step(d.resync())
}

// Expire is called when the sync timer fires.
func (d *Decoder) Expire() Step {
	if d.phase == phaseIdle {
		return d.step(0, nil)
	}
	return d.step(d.resync())
}

// Feed consumes one received byte.
func (d *Decoder) Feed(b byte) Step {
	return d.step(d.consume(b))
}

func (d *Decoder) step(ctl byte, f *Frame) Step {
	return Step{Control: ctl, State: d.State(), Frame: f}
}

func (d *Decoder) consume(b byte) (byte, *Frame) {
	switch d.phase {
	case phaseAwaitAck:
		if b == ctlREQ {
			d.phase = phaseReqSeq
		} else if b == ctlACK {
			d.phase = phaseAckSeq
		}
	case phaseReqSeq, phaseAckSeq:
		if !Seq(b).Valid() {
			return d.resync()
		}
		reply := d.phase == phaseReqSeq
		d.peer, d.phase = Seq(b), phaseIdle
		if reply {
			return ctlACK, nil
		}
	case phaseIdle:
		return d.frameStart(b)
	case phaseIdleAckSeq:
		if Seq(b) != d.peer {
			return d.resync()
		}
		d.phase = phaseIdle
	case phaseCode:
		return d.frameCode(b)
	case phaseLen:
		if b > MaxData {
			return d.resync()
		}
		return d.expectData(int(b))
	case phaseData:
		d.frame.Data[d.got] = b
		if d.got++; d.got == len(d.frame.Data) {
			return d.complete()
		}
	}
	return 0, nil
}

func (d *Decoder) frameStart(b byte) (byte, *Frame) {
	switch {
	case b == ctlREQ:
		d.phase = phaseReqSeq
	case b == ctlACK:
		d.phase = phaseIdleAckSeq
	case Seq(b) != d.peer:
		return d.resync()
	default:
		d.frame = &Frame{Seq: d.peer}
		d.peer = d.peer.Next()
		d.phase = phaseCode
	}
	return 0, nil
}

func (d *Decoder) frameCode(b byte) (byte, *Frame) {
	d.frame.Code = b & codeMask
	n := int(b&lenMask) >> 4
	if n == lenExt {
		d.phase = phaseLen
		return 0, nil
	}
	return d.expectData(n)
}

func (d *Decoder) expectData(n int) (byte, *Frame) {
	if n == 0 {
		return d.complete()
	}
	d.frame.Data, d.got = make([]byte, n), 0
	d.phase = phaseData
	return 0, nil
}

func (d *Decoder) resync() (byte, *Frame) {
	d.phase = phaseAwaitAck
	return ctlREQ, nil
}

func (d *Decoder) complete() (byte, *Frame) {
	f := d.frame
	d.frame, d.phase = nil, phaseIdle
	return 0, f
}
