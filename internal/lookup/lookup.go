package lookup

import (
	"context"
	"fmt"

	"github.com/FranksOps/domainhunt/internal/browser"
	"github.com/FranksOps/domainhunt/internal/model"
	"github.com/FranksOps/domainhunt/internal/serp"
)

// Lookup searches for name with provider on session and always returns
// exactly one outcome. Navigation and snapshot errors (including panics in
// the session) become a Failed resolution. The session is neither created
// nor closed here.
func Lookup(ctx context.Context, session browser.Session, provider serp.Provider, name string) (out model.Outcome) {
	out.Name = name

	defer func() {
		if r := recover(); r != nil {
			out.Resolution = model.Failed(fmt.Errorf("lookup panicked: %v", r))
		}
	}()

	if session == nil {
		out.Resolution = model.Failed(fmt.Errorf("no session for %q", name))
		return out
	}

	if err := session.Navigate(ctx, provider.QueryURL(name)); err != nil {
		out.Resolution = model.Failed(fmt.Errorf("navigate: %w", err))
		return out
	}

	page, err := session.Snapshot(ctx)
	if err != nil {
		out.Resolution = model.Failed(fmt.Errorf("snapshot: %w", err))
		return out
	}

	out.Resolution = provider.Extract(page)
	return out
}
