// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"time"

	"github.com/fedanalytics/hubgate/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// freshnessWindow bounds how old an item may be and still start
// unattended. Fixed policy, not configuration.
const freshnessWindow = 24 * time.Hour

// Filter decides which candidate work items are ready to start.
type Filter struct {
	logger *zap.Logger

	// Now is the clock used for the freshness check. Defaults to
	// time.Now.
	Now func() time.Time
}

func NewFilter(logger *zap.Logger) *Filter {
	if logger == nil {
		logger = sallust.Default()
	}
	return &Filter{logger: logger, Now: time.Now}
}

// Eligible returns the set of candidates ready to start. The predicate,
// in order, per item:
//
//  1. the item is approved and its build is finished;
//  2. with enforceChecks, the item is younger than the freshness window
//     and no run has been attempted yet;
//  3. with datastoreRequired, the item's project has a valid data route.
//
// enforceChecks is switched off by the on-demand initiation path, which
// may deliberately re-trigger an older or already-touched item. The
// result is a set, so duplicate tuples collapse naturally.
func (f *Filter) Eligible(items []model.WorkItem, validProjects map[string]struct{}, datastoreRequired, enforceChecks bool) map[model.Candidate]struct{} {
	eligible := map[model.Candidate]struct{}{}
	now := f.Now()

	for _, item := range items {
		if item.ApprovalStatus != model.ApprovalApproved || item.BuildStatus != model.BuildFinished {
			continue
		}

		if enforceChecks {
			if now.Sub(item.CreatedAt) >= freshnessWindow || item.RunStatus != "" {
				continue
			}
		}

		if datastoreRequired {
			if _, ok := validProjects[item.ProjectID]; !ok {
				f.logger.Info("skipping analysis, its project has no valid data route",
					zap.String("analysisId", item.AnalysisID), zap.String("projectId", item.ProjectID))
				continue
			}
		}

		eligible[model.Candidate{
			AnalysisID:  item.AnalysisID,
			ProjectID:   item.ProjectID,
			NodeID:      item.NodeID,
			BuildStatus: item.BuildStatus,
			RunStatus:   item.RunStatus,
		}] = struct{}{}
	}

	f.logger.Info("eligibility pass finished", zap.Int("eligible", len(eligible)), zap.Int("candidates", len(items)))
	return eligible
}
