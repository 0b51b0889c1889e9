package sim

// Slots holds at most one pending order per OrderKind. Submitting into an
// occupied slot replaces the previous order.
//
// An order becomes armed when the next candle is observed after it was
// submitted; only armed orders may trigger against a candle.
type Slots struct {
	orders [numOrderKinds]Order
	set    [numOrderKinds]bool
	armed  [numOrderKinds]bool
}

// Submit stores o. Re-submitting the order already in the slot keeps its
// armed state.
func (s *Slots) Submit(o Order) {
	if s.set[o.Kind] && s.orders[o.Kind] == o {
		return
	}
	s.orders[o.Kind] = o
	s.set[o.Kind] = true
	s.armed[o.Kind] = false
}

func (s *Slots) Get(k OrderKind) (Order, bool) {
	if k < 0 || k >= numOrderKinds {
		return Order{}, false
	}
	return s.orders[k], s.set[k]
}

// Armed is Get restricted to orders that were standing when the latest
// candle was observed.
func (s *Slots) Armed(k OrderKind) (Order, bool) {
	o, ok := s.Get(k)
	if !ok || !s.armed[k] {
		return Order{}, false
	}
	return o, true
}

// Arm marks every occupied slot as eligible to trigger.
func (s *Slots) Arm() {
	s.armed = s.set
}

func (s *Slots) Cancel(k OrderKind) {
	if k < 0 || k >= numOrderKinds {
		return
	}
	s.orders[k] = Order{}
	s.set[k] = false
	s.armed[k] = false
}

func (s *Slots) CancelAll() {
	*s = Slots{}
}

// Open lists the occupied slots in kind order.
func (s *Slots) Open() []Order {
	var out []Order
	for k := OrderKind(0); k < numOrderKinds; k++ {
		if s.set[k] {
			out = append(out, s.orders[k])
		}
	}
	return out
}
