package sas26

// sampler.go implements the windowed delivery-ratio sampler.  The sampler
// is driven by the caller's event loop: its tick is an ordinary event
// handler that samples the window and schedules itself again one window
// later, so ticks interleave with send and delivery events in timestamp
// order like any other event.

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// WindowSampler snapshots the per-window send/receive counters into the
// delivery-ratio series once per fixed window of simulated time
type WindowSampler struct {
	coll       *Collector
	windowSecs float64
	active     bool
}

// CreateWindowSampler is a constructor.  The window length comes from the
// collector's configuration.
func CreateWindowSampler(coll *Collector) *WindowSampler {
	ws := new(WindowSampler)
	ws.coll = coll
	ws.windowSecs = coll.cfg.WindowSecs
	return ws
}

// Start schedules the first tick one full window from now.  A partially
// elapsed final window is never sampled: once the event loop stops handing
// out ticks, sampling simply ends.
func (ws *WindowSampler) Start(evtMgr *evtm.EventManager) {
	ws.active = true
	evtMgr.Schedule(ws, nil, sampleWindowTick, vrtime.SecondsToTime(ws.windowSecs))
	SamplerLog.Debugf("window sampler started, window %.0f s", ws.windowSecs)
}

// Stop keeps any still-queued tick from sampling or rescheduling
func (ws *WindowSampler) Stop() {
	ws.active = false
}

// sampleWindowTick closes the current window and books the next tick
func sampleWindowTick(evtMgr *evtm.EventManager, context any, data any) any {
	ws := context.(*WindowSampler)
	if !ws.active {
		return nil
	}

	pdr := ws.coll.SampleWindow()
	SamplerLog.Debugf("window closed at %.0f s, pdr %.2f%%", evtMgr.CurrentSeconds(), pdr)

	evtMgr.Schedule(ws, nil, sampleWindowTick, vrtime.SecondsToTime(ws.windowSecs))
	return nil
}
