package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"manifold/internal/ingestion/types"
)

func TestNotifyFansOutToAllObservers(t *testing.T) {
	s := NewSink("cust-1", nil)
	var got []types.RunStatus
	s.On(func(p types.IngestionProgress) { got = append(got, p.Status) })
	s.On(func(p types.IngestionProgress) { got = append(got, p.Status) })

	s.Notify(context.Background(), types.IngestionProgress{Status: types.RunCrawling})

	assert.Equal(t, []types.RunStatus{types.RunCrawling, types.RunCrawling}, got)
}

func TestNotifySurvivesObserverPanic(t *testing.T) {
	s := NewSink("cust-1", nil)
	called := false
	s.On(func(p types.IngestionProgress) { panic("boom") })
	s.On(func(p types.IngestionProgress) { called = true })

	assert.NotPanics(t, func() {
		s.Notify(context.Background(), types.IngestionProgress{Status: types.RunProcessing})
	})
	assert.True(t, called, "observer registered after a panicking one must still run")
}

func TestNewKafkaWriterNilWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewKafkaWriter(nil, "ingestion.progress"))
	assert.Nil(t, NewKafkaWriter([]string{"localhost:9092"}, ""))
}
