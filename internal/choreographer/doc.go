// Package choreographer coordinates frame callbacks with display vsync.
//
// Each event loop gets one Choreographer (see Registry.GetForThread). Clients
// post callbacks with a delay; the choreographer decides whether to ask the
// display for a vsync right away, to re-check later on the loop, or to do
// nothing, and on each pulse runs every callback that has come due, earliest
// first.
//
// Refresh-rate listeners are told when the display's vsync period changes.
// Config-changed delivery from the display is enabled only while at least one
// listener is registered.
package choreographer
