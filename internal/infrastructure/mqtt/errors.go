package mqtt

import "errors"

var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrPublishFailed    = errors.New("mqtt: publish failed")

	// ErrInvalidTopic and ErrInvalidQoS reject a publish before it reaches
	// the broker.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS   = errors.New("mqtt: QoS must be 0, 1 or 2")
)
