package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sweeperStub struct {
	calls int
	err   error
}

func (s *sweeperStub) RunEscalationSweep(ctx context.Context) (*SweepResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &SweepResult{}, nil
}

func TestScheduler_RunSweepCallsSweeper(t *testing.T) {
	sweeper := &sweeperStub{}
	s := NewScheduler(sweeper, zap.NewNop(), "@every 1h")

	s.RunSweep()
	sweeper.err = errors.New("database unavailable")
	s.RunSweep()

	assert.Equal(t, 2, sweeper.calls)
}

func TestScheduler_StartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(&sweeperStub{}, zap.NewNop(), "every now and then")
	require.Error(t, s.Start())
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := NewScheduler(&sweeperStub{}, zap.NewNop(), "@every 1h")
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}
