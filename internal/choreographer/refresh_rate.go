package choreographer

import "slices"

// refreshRateObservers is the set of refresh-rate listeners plus the last
// vsync period they were told about. The owner's lock guards it.
type refreshRateObservers struct {
	listeners   []refreshRateListener
	vsyncPeriod int64
}

// add appends l unconditionally. It reports whether the set went from empty
// to non-empty, meaning config-changed delivery must be enabled.
func (o *refreshRateObservers) add(l refreshRateListener) (first bool) {
	first = len(o.listeners) == 0
	o.listeners = append(o.listeners, l)
	return first
}

// remove drops every listener registered with key. It reports whether the
// set went from non-empty to empty, meaning delivery must be suppressed.
func (o *refreshRateObservers) remove(key uintptr) (emptied bool) {
	before := len(o.listeners)
	o.listeners = slices.DeleteFunc(o.listeners, func(l refreshRateListener) bool {
		return l.key == key
	})
	return before > 0 && len(o.listeners) == 0
}

// notifyIfChanged records period and returns the listeners to notify, or nil
// when period equals the recorded one. The returned slice is a snapshot, so
// listeners may unregister while it is being iterated.
func (o *refreshRateObservers) notifyIfChanged(period int64) []refreshRateListener {
	if period == o.vsyncPeriod {
		return nil
	}
	o.vsyncPeriod = period
	return slices.Clone(o.listeners)
}

func (o *refreshRateObservers) len() int { return len(o.listeners) }
