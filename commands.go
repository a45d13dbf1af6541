package rtspclientsrc

import (
	"time"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
)

// command is the control task's command-inbox entry. The inbox is a
// capacity-1 channel of command values: a new command blocks until the
// task has drained the previous one, which is the only backpressure
// the facade needs.
type command interface {
	isCommand()
}

// playCommand starts or resumes playback of all SETUP'd media.
type playCommand struct {
	result chan error
}

func (playCommand) isCommand() {}

// SeekFlags controls how a seek affects buffered data downstream.
type SeekFlags struct {
	// Flush requests a Flush-Start/Flush-Stop pair around the seek,
	// discarding anything already queued downstream.
	Flush bool
}

// seekCommand re-issues PLAY with a new Range, superseding any seek
// already in flight once the prior PLAY response resolves.
type seekCommand struct {
	position time.Duration
	flags    SeekFlags
	result   chan error
}

func (seekCommand) isCommand() {}

// teardownCommand asks the control task to wind the session down. If
// ack is non-nil it is closed once TEARDOWN has been sent or the
// bounded wait for its response has elapsed.
type teardownCommand struct {
	ack chan struct{}
}

func (teardownCommand) isCommand() {}

// dataCommand carries an outbound interleaved frame (e.g. an RTCP
// receiver report travelling over TCP) to be written on the control
// connection.
type dataCommand struct {
	frame *base.InterleavedFrame
}

func (dataCommand) isCommand() {}

// reconnectCommand asks the control task to tear down the current
// connection and re-run the retry subsystem from scratch, as if the
// last connection attempt had just failed.
type reconnectCommand struct{}

func (reconnectCommand) isCommand() {}
