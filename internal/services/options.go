package services

import "time"

// Options holds the tunables the services read. They are passed in
// explicitly; nothing here reads the environment.
type Options struct {
	MaxPostLength   int
	FeedPageSize    int
	FeedMaxPageSize int
	NotifyTimeout   time.Duration
}

// DefaultOptions returns the limits used when no configuration overrides them.
func DefaultOptions() Options {
	return Options{
		MaxPostLength:   280,
		FeedPageSize:    20,
		FeedMaxPageSize: 100,
		NotifyTimeout:   5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxPostLength <= 0 {
		o.MaxPostLength = d.MaxPostLength
	}
	if o.FeedPageSize <= 0 {
		o.FeedPageSize = d.FeedPageSize
	}
	if o.FeedMaxPageSize <= 0 {
		o.FeedMaxPageSize = d.FeedMaxPageSize
	}
	if o.FeedPageSize > o.FeedMaxPageSize {
		o.FeedPageSize = o.FeedMaxPageSize
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = d.NotifyTimeout
	}
	return o
}
