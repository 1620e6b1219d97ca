package state

// OperationLog is the append-only, gapless, sequence-numbered history of a
// room. Entries are never removed or edited; undo and redo are new entries
// that toggle the visibility of an earlier stroke.
//
// OperationLog is not safe for concurrent use. The room authority owns it
// and serialises every call.
type OperationLog struct {
	entries []LogEntry
	strokes map[string]struct{}
	nextSeq uint64
}

// NewOperationLog returns an empty log whose first entry gets seq 1.
func NewOperationLog() *OperationLog {
	return &OperationLog{strokes: make(map[string]struct{}), nextSeq: 1}
}

// RestoreLog rebuilds a log from persisted entries. The next sequence number
// continues at max(seq)+1.
func RestoreLog(entries []LogEntry) *OperationLog {
	l := NewOperationLog()
	for _, e := range entries {
		l.entries = append(l.entries, e)
		if e.Kind == KindStroke && e.Stroke != nil {
			l.strokes[e.Stroke.ID] = struct{}{}
		}
		if e.Seq >= l.nextSeq {
			l.nextSeq = e.Seq + 1
		}
	}
	return l
}

// AppendStroke commits a final stroke.
func (l *OperationLog) AppendStroke(s Stroke) LogEntry {
	s = s.Clone()
	s.Complete = true
	l.strokes[s.ID] = struct{}{}
	return l.append(LogEntry{Kind: KindStroke, Stroke: &s})
}

// AppendUndo records that by hid refID.
func (l *OperationLog) AppendUndo(refID, by string) LogEntry {
	return l.append(LogEntry{Kind: KindUndo, RefID: refID, By: by})
}

// AppendRedo records that by restored refID.
func (l *OperationLog) AppendRedo(refID, by string) LogEntry {
	return l.append(LogEntry{Kind: KindRedo, RefID: refID, By: by})
}

func (l *OperationLog) append(e LogEntry) LogEntry {
	e.Seq = l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, e)
	return e
}

// HasStroke reports whether a stroke with id was already committed.
func (l *OperationLog) HasStroke(id string) bool {
	_, ok := l.strokes[id]
	return ok
}

// Entries returns a copy of the log in sequence order. Stroke payloads are
// shared; they are immutable once committed.
func (l *OperationLog) Entries() []LogEntry {
	return append([]LogEntry(nil), l.entries...)
}

func (l *OperationLog) Len() int { return len(l.entries) }

func (l *OperationLog) NextSeq() uint64 { return l.nextSeq }

// UndoTarget is the stroke the next undo would hide.
func (l *OperationLog) UndoTarget() (string, bool) { return UndoTarget(l.entries) }

// RedoTarget is the stroke the next redo would restore.
func (l *OperationLog) RedoTarget() (string, bool) { return RedoTarget(l.entries) }

// Undone folds the log oldest to newest and returns the ids whose latest
// toggle is an undo.
func Undone(entries []LogEntry) map[string]struct{} {
	undone := make(map[string]struct{})
	for _, e := range entries {
		switch e.Kind {
		case KindUndo:
			undone[e.RefID] = struct{}{}
		case KindRedo:
			delete(undone, e.RefID)
		}
	}
	return undone
}

// ActiveSet returns the ids of the strokes currently visible. It is
// recomputed from scratch on every call.
func ActiveSet(entries []LogEntry) map[string]struct{} {
	undone := Undone(entries)
	active := make(map[string]struct{})
	for _, e := range entries {
		if e.Kind != KindStroke || e.Stroke == nil {
			continue
		}
		if _, hidden := undone[e.Stroke.ID]; !hidden {
			active[e.Stroke.ID] = struct{}{}
		}
	}
	return active
}

// ActiveStrokes returns the visible strokes in log order.
func ActiveStrokes(entries []LogEntry) []Stroke {
	undone := Undone(entries)
	var out []Stroke
	for _, e := range entries {
		if e.Kind != KindStroke || e.Stroke == nil {
			continue
		}
		if _, hidden := undone[e.Stroke.ID]; !hidden {
			out = append(out, *e.Stroke)
		}
	}
	return out
}

// UndoTarget scans newest to oldest for the most recently committed stroke
// that is still active, whoever authored it.
func UndoTarget(entries []LogEntry) (string, bool) {
	undone := Undone(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind != KindStroke || e.Stroke == nil {
			continue
		}
		if _, hidden := undone[e.Stroke.ID]; !hidden {
			return e.Stroke.ID, true
		}
	}
	return "", false
}

// RedoTarget scans newest to oldest for the most recent undo that no later
// redo of the same stroke has superseded.
func RedoTarget(entries []LogEntry) (string, bool) {
	redone := make(map[string]struct{})
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch e.Kind {
		case KindRedo:
			redone[e.RefID] = struct{}{}
		case KindUndo:
			if _, ok := redone[e.RefID]; !ok {
				return e.RefID, true
			}
		}
	}
	return "", false
}
