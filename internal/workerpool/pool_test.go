package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitRunsAndReturnsError(t *testing.T) {
	p := New(2)
	defer p.Close()

	err := p.Submit(context.Background(), func() error { return nil })
	require.NoError(t, err)

	sentinel := errors.New("boom")
	err = p.Submit(context.Background(), func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestSubmitConcurrent(t *testing.T) {
	p := New(4)
	defer p.Close()

	var counter atomic.Int64
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			_ = p.Submit(context.Background(), func() error {
				counter.Add(1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	require.EqualValues(t, 20, counter.Load())
}

func TestSubmitRespectsContextCancellation(t *testing.T) {
	p := New(2)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	block := make(chan struct{})
	started := make(chan struct{}, 2)
	go func() {
		_ = p.Submit(context.Background(), func() error {
			started <- struct{}{}
			<-block
			return nil
		})
	}()
	go func() {
		_ = p.Submit(context.Background(), func() error {
			started <- struct{}{}
			<-block
			return nil
		})
	}()
	// Wait until both workers are occupied so the next Submit cannot be
	// accepted before ctx expires.
	<-started
	<-started

	err := p.Submit(ctx, func() error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}
