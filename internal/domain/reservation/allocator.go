package reservation

import (
	"context"
	"fmt"
	"slices"

	"docjournal/internal/core/apperror"
	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
	"docjournal/pkg/logger"
)

type allocStats struct {
	recycled int
	minted   int
	specific int
	expired  int64
}

// allocate reserves need numbers under hold: released numbers first, lowest
// first, then freshly minted ones. Must run inside a transaction; the counter
// row lock serializes concurrent allocations and is always taken before any
// number row is touched.
//
// golden restricts both phases to golden numbers and leaves next_normal_start
// untouched. admin lets a normal request take golden numbers too.
func (s *Service) allocate(ctx context.Context, hold ledger.Hold, need int, golden, admin bool) ([]int64, allocStats, error) {
	var st allocStats

	counter, err := s.counter.GetForUpdate(ctx)
	if err != nil {
		return nil, st, fmt.Errorf("lock counter: %w", err)
	}

	expired, err := s.numbers.ReleaseExpired(ctx, s.now())
	if err != nil {
		return nil, st, fmt.Errorf("release expired: %w", err)
	}
	st.expired = expired

	// Recycle. Over-fetch so the golden filter below does not starve the batch.
	released, err := s.numbers.FetchReleasedForUpdate(ctx, counter.BaseStart, golden, 2*need)
	if err != nil {
		return nil, st, fmt.Errorf("fetch released: %w", err)
	}
	picked := make([]int64, 0, need)
	for _, n := range released {
		if len(picked) == need {
			break
		}
		if !golden && !admin && numerator.IsGolden(n) {
			continue
		}
		picked = append(picked, n)
	}
	if len(picked) > 0 {
		if err := s.numbers.ReserveExisting(ctx, picked, hold); err != nil {
			return nil, st, fmt.Errorf("reserve released: %w", err)
		}
	}
	st.recycled = len(picked)

	// Mint
	out := picked
	if missing := need - len(out); missing > 0 {
		var minted []int64
		if golden {
			minted, err = s.mintGolden(ctx, counter, hold, missing)
		} else {
			minted, err = s.mintNormal(ctx, counter, hold, missing, admin)
		}
		if err != nil {
			return nil, st, err
		}
		st.minted = len(minted)
		out = append(out, minted...)
	}

	if len(out) < need {
		return nil, st, apperror.NewNumbersUnavailable("number space exhausted", need, len(out))
	}

	slices.Sort(out)
	return out, st, nil
}

// mintNormal inserts new entries from the normal frontier upwards and moves
// next_normal_start past the last candidate tried. Candidates another
// transaction got to first are skipped.
func (s *Service) mintNormal(ctx context.Context, counter *ledger.Counter, hold ledger.Hold, need int, admin bool) ([]int64, error) {
	out := make([]int64, 0, need)
	candidate := counter.NormalFrontier()
	start := candidate

	for len(out) < need && candidate <= s.cfg.MaxNumeric {
		if !admin && numerator.IsGolden(candidate) {
			candidate++
			continue
		}
		ok, err := s.numbers.InsertReserved(ctx, candidate, hold)
		if err != nil {
			return nil, fmt.Errorf("insert %d: %w", candidate, err)
		}
		if ok {
			out = append(out, candidate)
		} else {
			logger.Debug(ctx, "mint candidate already taken", "numeric", candidate)
		}
		candidate++
	}

	if candidate > start {
		if err := s.counter.AdvanceNormal(ctx, candidate); err != nil {
			return nil, fmt.Errorf("advance counter: %w", err)
		}
	}
	return out, nil
}

// mintGolden inserts new golden entries from the golden frontier upwards.
func (s *Service) mintGolden(ctx context.Context, counter *ledger.Counter, hold ledger.Hold, need int) ([]int64, error) {
	out := make([]int64, 0, need)
	for candidate := counter.GoldenFrontier(); len(out) < need && candidate <= s.cfg.MaxNumeric; candidate += numerator.GoldenStep {
		ok, err := s.numbers.InsertReserved(ctx, candidate, hold)
		if err != nil {
			return nil, fmt.Errorf("insert %d: %w", candidate, err)
		}
		if ok {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// reserveSpecific reserves each of numbers (sorted, unique) that is free:
// absent numbers are inserted, released ones flipped. Reserved and assigned
// numbers are skipped. Fails only when nothing could be reserved.
func (s *Service) reserveSpecific(ctx context.Context, hold ledger.Hold, numbers []int64) ([]int64, allocStats, error) {
	var st allocStats

	// Inserting here can wait on a concurrent mint, so take the counter as
	// allocate does.
	if _, err := s.counter.GetForUpdate(ctx); err != nil {
		return nil, st, fmt.Errorf("lock counter: %w", err)
	}

	expired, err := s.numbers.ReleaseExpired(ctx, s.now())
	if err != nil {
		return nil, st, fmt.Errorf("release expired: %w", err)
	}
	st.expired = expired

	out := make([]int64, 0, len(numbers))
	for _, n := range numbers {
		entry, err := s.numbers.GetForUpdate(ctx, n)
		switch {
		case apperror.IsNotFound(err):
			ok, err := s.numbers.InsertReserved(ctx, n, hold)
			if err != nil {
				return nil, st, fmt.Errorf("insert %d: %w", n, err)
			}
			if ok {
				out = append(out, n)
			}
		case err != nil:
			return nil, st, fmt.Errorf("lock %d: %w", n, err)
		case entry.Status == ledger.StatusReleased:
			if err := s.numbers.ReserveExisting(ctx, []int64{n}, hold); err != nil {
				return nil, st, fmt.Errorf("reserve %d: %w", n, err)
			}
			out = append(out, n)
		default:
			logger.Debug(ctx, "specific number skipped", "numeric", n, "status", entry.Status)
		}
	}

	if len(out) == 0 {
		return nil, st, apperror.NewNumbersUnavailable("all requested numbers are taken", len(numbers), 0).
			WithDetail("numbers", numbers)
	}
	st.specific = len(out)
	return out, st, nil
}
