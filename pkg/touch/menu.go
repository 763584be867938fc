package touch

// Columns is the number of buttons on the menu bar.
const Columns = 4

// MenuBar is the geometry of the menu bar at the bottom of the display.
type MenuBar struct {
	X, Y          int
	Spacing       int
	Width, Height int
}

// DefaultMenuBar fits a 320x480 portrait display.
var DefaultMenuBar = MenuBar{X: 3, Y: 445, Spacing: 80, Width: 75, Height: 36}

// Column returns the menu button under p, or -1. Edges don't count.
func (m MenuBar) Column(p Point) int {
	if p.Y <= m.Y || p.Y >= m.Y+m.Height {
		return -1
	}
	for col := 0; col < Columns; col++ {
		left := m.X + col*m.Spacing
		if p.X > left && p.X < left+m.Width {
			return col
		}
	}
	return -1
}

// MenuMap gives the target of each menu button per screen.
type MenuMap map[Screen][Columns]Screen

// Next returns the screen selected by col on current. Screens without an
// entry go Home.
func (m MenuMap) Next(current Screen, col int) Screen {
	if targets, ok := m[current]; ok && col >= 0 && col < Columns {
		return targets[col]
	}
	return Home
}

var mainMenus = MenuMap{
	Home:    {Guide, Focuser, Goto, More},
	Guide:   {Home, Focuser, Align, More},
	Focuser: {Home, Guide, Goto, More},
	Goto:    {Home, Focuser, Guide, More},
}

func withMain(extra MenuMap) MenuMap {
	m := make(MenuMap, len(mainMenus)+len(extra))
	for s, targets := range mainMenus {
		m[s] = targets
	}
	for s, targets := range extra {
		m[s] = targets
	}
	return m
}

// StandardMenu is the menu layout without the ODrive screen.
var StandardMenu = withMain(MenuMap{
	More:     {Goto, Settings, Guide, Align},
	XStatus:  {Home, Settings, Align, More},
	Settings: {Home, XStatus, Align, More},
	Align:    {Home, Focuser, Guide, More},
})

// ODriveMenu is the menu layout of mounts driven by ODrive motors.
var ODriveMenu = withMain(MenuMap{
	More:     {Goto, Settings, ODrive, Align},
	ODrive:   {Home, Settings, Align, XStatus},
	XStatus:  {Home, Settings, Align, ODrive},
	Settings: {Home, XStatus, Align, ODrive},
	Align:    {Home, Focuser, Guide, ODrive},
})
