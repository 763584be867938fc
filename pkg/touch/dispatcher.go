package touch

import "github.com/golang/glog"

// Dispatcher routes calibrated touches.
type Dispatcher struct {
	Bar   MenuBar
	Menus MenuMap
	Pages map[Screen]Page
	// Show makes a screen current, before it is drawn.
	Show func(Screen)
	// Beep acknowledges a menu press.
	Beep func()
}

// NewDispatcher creates a Dispatcher with the default menu bar.
func NewDispatcher(menus MenuMap, pages map[Screen]Page) *Dispatcher {
	return &Dispatcher{Bar: DefaultMenuBar, Menus: menus, Pages: pages}
}

// Touch handles a touch at p on current and returns the screen which is
// current afterwards.
func (d *Dispatcher) Touch(p Point, current Screen) Screen {
	if current.HasMenu() {
		if col := d.Bar.Column(p); col >= 0 {
			if d.Beep != nil {
				d.Beep()
			}
			next := d.Menus.Next(current, col)
			glog.V(2).Infof("touch: menu %d on %s -> %s", col, current, next)
			d.show(next)
			return next
		}
	}
	page := d.Pages[current]
	if page == nil {
		glog.V(3).Infof("touch: %s ignores touches", current)
		return current
	}
	if page.TouchPoll(p.X, p.Y) {
		page.UpdateButtons()
	}
	return current
}

func (d *Dispatcher) show(s Screen) {
	if d.Show != nil {
		d.Show(s)
	}
	if page := d.Pages[s]; page != nil {
		page.Draw()
	}
}
