package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the unique ID identifying the machine, or "nv" when
// the platform doesn't expose one.
func MachineID() string {
	id, err := machineid.ProtectedID("nv.go")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return "nv"
	}
	return id[:16]
}
