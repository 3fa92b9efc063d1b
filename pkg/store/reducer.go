package store

// ReducerFunc updates the application slice of the state it is registered
// for. It receives the current value (nil initially) and returns the new one.
type ReducerFunc func(current any, a Action) any

// reduce applies the built-in reducers to s in place.
func reduce(s *State, a Action) {
	switch a := a.(type) {
	case PreloadStarted:
		s.Preload.Pending = true
		s.Preload.Error = ""
	case PreloadFinished:
		s.Preload.Pending = false
	case PreloadFailed:
		s.Preload.Pending = false
		if a.Err != nil {
			s.Preload.Error = a.Err.Error()
		}
	case Commit:
		reduceCommit(s, a)
	case LoadState:
		*s = a.State.clone()
	}
}

func reduceCommit(s *State, c Commit) {
	var prev *InstantEntry
	if s.Router.Committed {
		prev = &InstantEntry{Location: s.Router.Location, Route: s.Router.Route}
		loc := s.Router.Location
		s.Router.Previous = &loc
	}

	next := InstantEntry{Location: c.Location, Route: c.Route}
	switch {
	case c.InstantBack && prev != nil:
		s.InstantBack = addInstantBack(s.InstantBack, *prev, next)
	case !c.Instant:
		// A regular navigation discards the chain; only consecutive
		// instant-back navigations keep it.
		s.InstantBack = nil
	}

	s.Router.Location = c.Location
	s.Router.Route = c.Route
	s.Router.Params = c.Params
	s.Router.Committed = true
	s.Preload.Instant = c.Instant
}

func addInstantBack(chain []InstantEntry, prev, next InstantEntry) []InstantEntry {
	if n := len(chain); n == 0 || !chain[n-1].Location.Equal(prev.Location) {
		chain = []InstantEntry{prev}
	}
	chain = append(chain, next)
	if len(chain) > MaxInstantBack {
		chain = chain[len(chain)-MaxInstantBack:]
	}
	return chain
}
