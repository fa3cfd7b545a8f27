// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"errors"
	"sync"

	"github.com/fedanalytics/hubgate/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// ErrRobotIDMissing is a configuration error: without a robot
// credential the node cannot be resolved at all. Fail fast, never
// retried.
var ErrRobotIDMissing = errors.New("robot id is not configured")

// NodeCache resolves this deployment's node identity and type from the
// hub and caches the result process-wide. Node type almost never
// changes, so the slot is written once and re-resolved only on an
// explicit force refresh (or process restart).
type NodeCache struct {
	hub     HubClient
	robotID string
	logger  *zap.Logger

	// mu guards the slot and keeps a cold start from issuing
	// duplicate concurrent hub lookups.
	mu       sync.Mutex
	resolved bool
	desc     model.NodeDescriptor
}

// NewNodeCache creates a NodeCache bound to the given robot credential.
func NewNodeCache(hub HubClient, robotID string, logger *zap.Logger) *NodeCache {
	if logger == nil {
		logger = sallust.Default()
	}
	return &NodeCache{hub: hub, robotID: robotID, logger: logger}
}

// DescribeNode returns the cached node descriptor, resolving it on
// first use. An empty descriptor ID is a valid cached answer meaning
// "no node associated": it is cached deliberately when the robot lookup
// matched zero or more than one node, so that downstream filtering by
// node id never accidentally sees everyone's work items. A hub failure
// is returned unresolved so the next call retries.
func (c *NodeCache) DescribeNode(ctx context.Context, force bool) (model.NodeDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved && !force {
		return c.desc, nil
	}

	if c.robotID == "" {
		return model.NodeDescriptor{}, ErrRobotIDMissing
	}

	nodes, err := c.hub.FindNodes(ctx, c.robotID)
	if err != nil {
		return model.NodeDescriptor{}, err
	}

	desc := model.NodeDescriptor{RobotID: c.robotID}
	if len(nodes) == 1 {
		node, err := c.hub.GetNode(ctx, nodes[0].ID)
		if err != nil {
			return model.NodeDescriptor{}, err
		}
		desc.ID = node.ID
		desc.Type = node.Type
		if desc.Type == "" {
			desc.Type = model.NodeTypeDefault
		}
	} else {
		c.logger.Warn("robot credential did not resolve to exactly one node",
			zap.String("robotId", c.robotID), zap.Int("matches", len(nodes)))
	}

	c.desc = desc
	c.resolved = true
	return desc, nil
}
