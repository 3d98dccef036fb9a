package schedule

import (
	"context"
	"errors"
	"time"

	"schedview/internal/model"
)

// ErrNotLoaded is returned when a view is requested from a state whose
// load failed.
var ErrNotLoaded = errors.New("schedule not loaded")

// Loader produces the schedule document in a single attempt.
type Loader interface {
	Fetch(ctx context.Context) (*model.Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*model.Document, error)

func (f LoaderFunc) Fetch(ctx context.Context) (*model.Document, error) { return f(ctx) }

// State is the application state after a load: either a document or the
// terminal load error. It is immutable; a new load makes a new State.
type State struct {
	Doc      *model.Document
	Err      error
	LoadedAt time.Time
}

// Load runs loader once. No retry is attempted.
func Load(ctx context.Context, loader Loader) State {
	doc, err := loader.Fetch(ctx)
	if err == nil && doc == nil {
		err = ErrNotLoaded
	}
	if err != nil {
		return State{Err: err, LoadedAt: time.Now()}
	}
	return State{Doc: doc, LoadedAt: time.Now()}
}

// Ready reports whether the state holds a document.
func (s State) Ready() bool {
	return s.Err == nil && s.Doc != nil
}

// View is the outcome of applying Criteria to a loaded State.
type View struct {
	Doc      *model.Document
	Criteria Criteria
	Result   Result
	Tree     Tree
}

// Apply filters and groups the document. It never yields a view for a
// state without a document.
func (s State) Apply(c Criteria) (View, error) {
	if !s.Ready() {
		if s.Err != nil {
			return View{}, errors.Join(ErrNotLoaded, s.Err)
		}
		return View{}, ErrNotLoaded
	}
	res := Filter(s.Doc, c)
	return View{
		Doc:      s.Doc,
		Criteria: c,
		Result:   res,
		Tree:     Group(res.Sessions),
	}, nil
}
