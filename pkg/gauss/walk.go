package gauss

// Frame is one level of the overlap enumeration: the blob of the atoms merged
// so far and the cursor of the last candidate merged at this level.
type Frame struct {
	Blob   Blob
	Cursor int
}

// Visitor receives every overlap of order >= 2 whose filtered volume is not
// negligible. members[0] is the root, members[1:] candidate ids in merge
// order. Neither members nor res may be retained after the call.
type Visitor func(members []int, res *Result)

// Walker enumerates the overlaps rooted at one sphere with an explicit stack.
// Candidates are tried in the given order and only candidates after the
// previous one are merged, so every subset is produced once. A branch stops
// when its volume is negligible or MaxOrder atoms are merged. A Walker holds
// scratch space only and may be reused; it is not safe for concurrent use.
type Walker struct {
	Switch   Switch
	Level    Level
	MaxOrder int

	frames  [MaxOrder]Frame
	spheres [MaxOrder]Sphere
	members [MaxOrder]int
	res     Result
}

// Walk runs the enumeration rooted at root (whose id is rootID) over cands.
// sphere returns the Gaussian of a candidate id.
func (w *Walker) Walk(rootID int, root Sphere, cands []int, sphere func(id int) Sphere, visit Visitor) {
	limit := w.MaxOrder
	if limit <= 0 || limit > MaxOrder {
		limit = MaxOrder
	}
	nn := len(cands)
	if nn == 0 || limit < 2 {
		return
	}

	w.spheres[0] = root
	w.members[0] = rootID
	w.frames[0] = Frame{Blob: root.Blob()}

	order := 2
	w.frames[1].Cursor = 0
	for {
		f := &w.frames[order-1]
		if f.Cursor >= nn {
			order--
			if order < 2 {
				return
			}
			w.frames[order-1].Cursor++
			continue
		}

		id := cands[f.Cursor]
		w.spheres[order-1] = sphere(id)
		w.members[order-1] = id

		if Merge(w.spheres[:order], w.frames[order-2].Blob, w.Switch, w.Level, &w.res) {
			f.Blob = w.res.Blob
			visit(w.members[:order], &w.res)
			if order < limit {
				order++
				w.frames[order-1].Cursor = f.Cursor + 1
				continue
			}
		}
		f.Cursor++
	}
}
