package db

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"time"
)

// PollOutcome is the terminal state of one snapshot wait. Timeouts and
// store-reported failures are outcomes rather than errors so callers can
// pick different remediations for each.
type PollOutcome int

const (
	SaveCompleted PollOutcome = iota
	SaveFailed
	SaveTimedOut
)

func (o PollOutcome) String() string {
	switch o {
	case SaveCompleted:
		return "completed"
	case SaveFailed:
		return "failed"
	case SaveTimedOut:
		return "timed out"
	}
	return "unknown"
}

// PersistenceInfo is one combined status read: the save-completion token,
// the in-progress flag and the failure marker all come from a single
// round trip so polling does not double the request volume.
type PersistenceInfo struct {
	LastSaveTime     int64
	BgSaveInProgress bool
	LastBgSaveStatus string // "ok" or "err"
}

// Snapshotter is a live data-store connection that supports asynchronous
// background saves.
type Snapshotter interface {
	BgSave(ctx context.Context) error
	PersistenceInfo(ctx context.Context) (PersistenceInfo, error)
}

// WaitResult carries the outcome and, for SaveFailed, a short reason
// sourced from the store's own status report.
type WaitResult struct {
	Outcome PollOutcome
	Reason  string
}

// WaitForSnapshot triggers a background save (unless one is already
// running) and polls until the save-completion token moves past the
// baseline captured on entry, the store reports the attempt failed, or
// the timeout elapses. Context cancellation aborts at the next poll
// boundary; the returned error is reserved for transport failures.
//
// A failure marker that was already set at baseline is ignored until a
// new save attempt is observed, so leftovers from unrelated prior saves
// cannot abort this wait.
func WaitForSnapshot(ctx context.Context, s Snapshotter, pollInterval, timeout time.Duration) (WaitResult, error) {
	baseline, err := s.PersistenceInfo(ctx)
	if err != nil {
		return WaitResult{}, err
	}

	staleFailure := baseline.LastBgSaveStatus == "err"
	sawAttempt := baseline.BgSaveInProgress
	triggered := false

	if !baseline.BgSaveInProgress {
		if err := s.BgSave(ctx); err != nil {
			return WaitResult{}, err
		}
		triggered = true
	}

	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return WaitResult{}, ctx.Err()
		case <-timer.C:
		}

		info, err := s.PersistenceInfo(ctx)
		if err != nil {
			return WaitResult{}, err
		}

		if info.LastSaveTime > baseline.LastSaveTime {
			return WaitResult{Outcome: SaveCompleted}, nil
		}

		if info.BgSaveInProgress {
			sawAttempt = true
		}

		if info.LastBgSaveStatus == "err" && !info.BgSaveInProgress {
			if triggered || sawAttempt || !staleFailure {
				return WaitResult{
					Outcome: SaveFailed,
					Reason:  "store reported last background save failed (rdb_last_bgsave_status=err)",
				}, nil
			}
		}

		if time.Now().After(deadline) {
			return WaitResult{Outcome: SaveTimedOut}, nil
		}

		timer.Reset(pollInterval)
	}
}

// ParsePersistenceInfo extracts the fields hookdump cares about from a raw
// INFO persistence response. Absent or malformed numeric fields read as 0;
// only explicit failure markers ever surface as a failed outcome.
func ParsePersistenceInfo(raw string) PersistenceInfo {
	info := PersistenceInfo{LastBgSaveStatus: "ok"}

	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "rdb_last_save_time":
			n, err := strconv.ParseInt(value, 10, 64)
			if err == nil {
				info.LastSaveTime = n
			}
		case "rdb_bgsave_in_progress":
			info.BgSaveInProgress = value == "1"
		case "rdb_last_bgsave_status":
			if value != "" {
				info.LastBgSaveStatus = value
			}
		}
	}

	return info
}
