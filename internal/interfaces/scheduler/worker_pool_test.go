package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockJob struct {
	key   string
	err   error
	ran   chan string
	block chan struct{}
}

func (j *MockJob) Execute(ctx context.Context) error {
	if j.block != nil {
		<-j.block
	}
	if j.ran != nil {
		j.ran <- j.key
	}
	return j.err
}

func (j *MockJob) Key() string         { return j.key }
func (j *MockJob) Description() string { return "mock " + j.key }

func TestWorkerPool_RunsJobs(t *testing.T) {
	ran := make(chan string, 3)
	pool := NewWorkerPool(zerolog.Nop(), 2, 0, 3)
	pool.Start()

	n := pool.SubmitBatch([]Job{
		&MockJob{key: "1", ran: ran},
		&MockJob{key: "2", ran: ran, err: errors.New("boom")},
		&MockJob{key: "3", ran: ran},
	})
	require.Equal(t, 3, n)
	pool.Shutdown(time.Second)

	close(ran)
	var keys []string
	for k := range ran {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"1", "2", "3"}, keys, "a failing job does not stop the pool")
}

func TestWorkerPool_SubmitWhenFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewWorkerPool(zerolog.Nop(), 0, 0, 1)

	require.NoError(t, pool.Submit(&MockJob{key: "1", block: block}))
	assert.Error(t, pool.Submit(&MockJob{key: "2"}), "queue of one is full without workers")

	close(block)
	pool.Shutdown(10 * time.Millisecond)
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(zerolog.Nop(), 1, 0, 4)
	pool.Start()
	pool.Shutdown(time.Second)

	assert.ErrorIs(t, pool.Submit(&MockJob{key: "late"}), ErrPoolClosed)
	assert.Equal(t, 0, pool.SubmitBatch([]Job{&MockJob{key: "a"}, &MockJob{key: "b"}}))
	assert.NotPanics(t, func() { pool.Shutdown(time.Millisecond) }, "second shutdown is a no-op")
}

func TestWorkerPool_ShutdownRacesSubmit(t *testing.T) {
	pool := NewWorkerPool(zerolog.Nop(), 2, 0, 8)
	pool.Start()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = pool.Submit(&MockJob{key: "k"})
			}
		}()
	}
	pool.Shutdown(time.Second)
	wg.Wait()
}
