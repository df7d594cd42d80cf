package board

import "context"

// Flip applies the player's next move at pos: a first flip when the player
// has no outstanding selection, otherwise a second flip. The choice is made
// under the board lock. A first flip that is waiting for its card has not
// recorded a selection yet, so another Flip by the same player during that
// wait is also treated as a first flip.
func (b *Board) Flip(ctx context.Context, player string, pos Position) error {
	b.mu.Lock()
	if !b.inBounds(pos) {
		b.mu.Unlock()
		return ErrOutOfBounds
	}
	if ps := b.players[player]; ps != nil && ps.hasFirst {
		return b.flipSecondLocked(player, pos)
	}
	return b.flipFirstLocked(ctx, player, pos, true)
}

// FlipFirst turns over, or takes control of, the card at pos as the
// player's first card of a pair attempt. If the card is face up and held by
// another player, the call joins a FIFO queue for that cell and blocks
// until the card is released or removed, or ctx is canceled.
//
// Fairness is per cell only: a released card goes to the waiter at the head
// of that cell's queue, and a waiter whose retry loses the card again
// re-enters at the back. No ordering is guaranteed across different cells.
func (b *Board) FlipFirst(ctx context.Context, player string, pos Position) error {
	b.mu.Lock()
	if !b.inBounds(pos) {
		b.mu.Unlock()
		return ErrOutOfBounds
	}
	return b.flipFirstLocked(ctx, player, pos, true)
}

// TryFlipFirst is the non-blocking variant of FlipFirst: a card held by
// another player fails with ErrContested instead of waiting.
func (b *Board) TryFlipFirst(player string, pos Position) error {
	b.mu.Lock()
	if !b.inBounds(pos) {
		b.mu.Unlock()
		return ErrOutOfBounds
	}
	return b.flipFirstLocked(context.Background(), player, pos, false)
}

// flipFirstLocked is called with the lock held and returns with it
// released. The loop re-reads the cell after every wake because its state
// may have changed again before the woken waiter reacquired the lock.
func (b *Board) flipFirstLocked(ctx context.Context, player string, pos Position, wait bool) error {
	b.settleLocked(player)
	for {
		c := &b.cells[b.index(pos)]
		switch {
		case !c.occupied:
			b.mu.Unlock()
			return ErrEmptySpace
		case c.face == FaceDown:
			c.face = FaceUp
			c.controller = player
			b.recordFirstLocked(player, pos)
			b.notifyLocked()
			b.mu.Unlock()
			return nil
		case c.controller == "" || c.controller == player:
			// Control transfer only. Not a visible change, no notification.
			c.controller = player
			b.recordFirstLocked(player, pos)
			b.mu.Unlock()
			return nil
		default:
			if !wait {
				b.mu.Unlock()
				return ErrContested
			}
			w := &waiter{player: player, ch: make(chan waitSignal, 1)}
			i := b.index(pos)
			b.waiters[i] = append(b.waiters[i], w)
			b.mu.Unlock()
			select {
			case sig := <-w.ch:
				if sig == signalRemoved {
					return ErrEmptySpace
				}
				b.mu.Lock()
			case <-ctx.Done():
				b.mu.Lock()
				b.abandonLocked(pos, w)
				b.mu.Unlock()
				return ctx.Err()
			}
		}
	}
}

func (b *Board) recordFirstLocked(player string, pos Position) {
	ps := b.playerFor(player)
	ps.hasFirst = true
	ps.first = pos
}

// FlipSecond turns over, or claims, the card at pos as the second card of
// the player's pair attempt. It never blocks: a second card held by anyone
// fails immediately, which is what keeps two players from deadlocking on
// each other's first cards.
//
// On a match both cards stay face up under the player's control; on a
// mismatch both are released. Either way the outcome is recorded and
// applied at the start of the player's next first flip.
func (b *Board) FlipSecond(player string, pos Position) error {
	b.mu.Lock()
	if !b.inBounds(pos) {
		b.mu.Unlock()
		return ErrOutOfBounds
	}
	return b.flipSecondLocked(player, pos)
}

// flipSecondLocked is called with the lock held and returns with it
// released.
func (b *Board) flipSecondLocked(player string, pos Position) error {
	ps := b.players[player]
	if ps == nil || !ps.hasFirst {
		b.mu.Unlock()
		return ErrNoFirst
	}
	first := ps.first
	c := &b.cells[b.index(pos)]
	switch {
	case !c.occupied:
		// The turn aborts: give up the first card without recording an
		// outcome.
		b.releaseFirstLocked(player, first)
		ps.hasFirst = false
		b.mu.Unlock()
		return ErrEmptyTarget
	case c.face == FaceUp && c.controller != "":
		b.releaseFirstLocked(player, first)
		ps.hasFirst = false
		b.mu.Unlock()
		return ErrSecondContested
	}
	if c.face == FaceDown {
		c.face = FaceUp
		b.notifyLocked()
	}
	fc := &b.cells[b.index(first)]
	if fc.label == c.label {
		fc.controller = player
		c.controller = player
		ps.outcome = &pairOutcome{matched: true, first: first, second: pos}
	} else {
		fc.controller = ""
		c.controller = ""
		ps.outcome = &pairOutcome{matched: false, first: first, second: pos}
		b.wakeOneLocked(first)
		b.wakeOneLocked(pos)
	}
	ps.hasFirst = false
	b.mu.Unlock()
	return nil
}

// releaseFirstLocked gives up the player's hold on its first card after an
// aborted second flip. The card stays face up.
func (b *Board) releaseFirstLocked(player string, first Position) {
	c := &b.cells[b.index(first)]
	if c.occupied && c.controller == player {
		c.controller = ""
		b.wakeOneLocked(first)
	}
}

// settleLocked applies the player's pending pair outcome before a new
// first flip: a matched pair is removed from the board, a mismatched pair
// is turned face down where still unclaimed. A recorded position whose cell
// has since been emptied by another player's removal is skipped.
func (b *Board) settleLocked(player string) {
	ps := b.players[player]
	if ps == nil || ps.outcome == nil {
		return
	}
	out := ps.outcome
	ps.outcome = nil
	changed := false
	for _, pos := range []Position{out.first, out.second} {
		c := &b.cells[b.index(pos)]
		if !c.occupied {
			continue
		}
		if out.matched {
			*c = cell{}
			changed = true
			b.wakeAllRemovedLocked(pos)
		} else if c.face == FaceUp && c.controller == "" {
			c.face = FaceDown
			changed = true
			b.wakeOneLocked(pos)
		}
	}
	if changed {
		b.notifyLocked()
	}
}
