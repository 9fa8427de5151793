// Package gochannel backs the event bus with an in-process pub/sub, used when
// no broker is configured and in tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const defaultBuffer = 1000

// CreateChannel returns an in-memory publisher/subscriber pair. Both returned
// values are the same GoChannel instance, which implements both interfaces.
// Messages are dropped once consumed and publishing never blocks.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: defaultBuffer,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// CreateTestChannel returns a pair tuned for deterministic tests: a small
// buffer, persistent messages so late subscribers still see them, and
// publishing that blocks until the subscriber acks.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
