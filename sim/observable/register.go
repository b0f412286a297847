// register.go wires the observable registry into sim.NewObservableFunc.

package observable

import "github.com/dmc-sim/dmc-sim/sim"

func init() {
	sim.NewObservableFunc = FromSpec
}
