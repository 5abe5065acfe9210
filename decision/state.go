package decision

import (
	"time"

	"github.com/zsiec/autodirector/media"
)

// maxHistoryEntries bounds ProgramState.History, independent of the
// much shorter ping-pong lookback window.
const maxHistoryEntries = 64

// HistoryEntry records one camera becoming the program cam.
type HistoryEntry struct {
	Cam media.CameraID
	Ts  time.Time
}

// ProgramState is the singleton mutated only by Engine. Every
// other component reads it only via Engine.Snapshot, which returns a
// deep copy.
type ProgramState struct {
	CurrentCam   media.CameraID
	HasCurrent   bool
	LastSwitchTs time.Time
	ShotStartTs  time.Time
	History      []HistoryEntry
	Cooldowns    map[media.CameraID]time.Time

	ManualCam  media.CameraID
	HasManual  bool
	DeferCount int
}

func newProgramState() ProgramState {
	return ProgramState{Cooldowns: make(map[media.CameraID]time.Time)}
}

func cloneProgramState(s ProgramState) ProgramState {
	out := s
	out.History = append([]HistoryEntry(nil), s.History...)
	out.Cooldowns = make(map[media.CameraID]time.Time, len(s.Cooldowns))
	for cam, ts := range s.Cooldowns {
		out.Cooldowns[cam] = ts
	}
	return out
}

func appendHistory(h []HistoryEntry, cam media.CameraID, ts time.Time) []HistoryEntry {
	h = append(h, HistoryEntry{Cam: cam, Ts: ts})
	if len(h) > maxHistoryEntries {
		h = h[len(h)-maxHistoryEntries:]
	}
	return h
}

func switchTo(s ProgramState, to media.CameraID, now time.Time) ProgramState {
	s.CurrentCam = to
	s.HasCurrent = true
	s.LastSwitchTs = now
	s.ShotStartTs = now
	s.DeferCount = 0
	s.History = appendHistory(s.History, to, now)
	return s
}
