// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package inmem provides a process-local outcome sink, the default when
// no durable backend is configured.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/fedanalytics/hubgate/events"
)

type expireableOutcome struct {
	events.Outcome
	expiration *time.Time
}

type InMem struct {
	data map[string][]expireableOutcome
	lock sync.Mutex
	now  func() time.Time
}

func New() *InMem {
	return &InMem{
		data: map[string][]expireableOutcome{},
		now:  time.Now,
	}
}

func (i *InMem) Record(_ context.Context, outcome events.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}

	i.lock.Lock()
	defer i.lock.Unlock()

	storing := expireableOutcome{Outcome: outcome}
	if outcome.TTL > 0 {
		expiration := i.now().Add(time.Duration(outcome.TTL) * time.Second)
		storing.expiration = &expiration
	}
	i.data[outcome.AnalysisID] = append(i.data[outcome.AnalysisID], storing)
	return nil
}

func (i *InMem) ByAnalysis(_ context.Context, analysisID string) ([]events.Outcome, error) {
	if analysisID == "" {
		return nil, events.ErrAnalysisIDEmpty
	}

	i.lock.Lock()
	defer i.lock.Unlock()

	stored, ok := i.data[analysisID]
	if !ok {
		return nil, events.ErrNotFound
	}

	// expired records are dropped from the internal slice on read
	alive := stored[:0]
	var out []events.Outcome
	for _, record := range stored {
		if record.expiration != nil && !record.expiration.After(i.now()) {
			continue
		}
		alive = append(alive, record)
		out = append(out, record.Outcome)
	}
	if len(alive) == 0 {
		delete(i.data, analysisID)
	} else {
		i.data[analysisID] = alive
	}

	if len(out) == 0 {
		return nil, events.ErrNotFound
	}
	return out, nil
}
