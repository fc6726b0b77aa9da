// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
)

// FrameHandler handles one request frame received from a master and returns
// the response frame to send back, or nil when the master gets no answer.
type FrameHandler func(ctx context.Context, frame []byte) []byte

// Upstream is a link to a Modbus master. It assembles request frames from the
// link and writes back whatever the handler returns.
type Upstream interface {
	// Start serves the link and blocks until ctx is done or the link fails.
	Start(ctx context.Context, handler FrameHandler) error
	Close() error
}
