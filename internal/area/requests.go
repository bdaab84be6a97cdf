package area

import "context"

// send delivers m unless the area has shut down or ctx ends first.
func (a *Area) send(ctx context.Context, m Msg) error {
	select {
	case a.inbox <- m:
		return nil
	case <-a.ctx.Done():
		return ErrAreaClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns a consistent copy of the area's state.
func (a *Area) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := a.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-a.ctx.Done():
		return View{}, ErrAreaClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// EnqueueTrack blocks until the track was resolved and queued or rejected.
func (a *Area) EnqueueTrack(ctx context.Context, url string) (EnqueueResult, error) {
	reply := make(chan EnqueueResult, 1)
	if err := a.send(ctx, Enqueue{URL: url, Reply: reply}); err != nil {
		return EnqueueResult{}, err
	}
	select {
	case r := <-reply:
		return r, nil
	case <-a.ctx.Done():
		return EnqueueResult{}, ErrAreaClosed
	case <-ctx.Done():
		return EnqueueResult{}, ctx.Err()
	}
}
