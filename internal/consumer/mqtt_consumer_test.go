package consumer

import (
	"context"
	"errors"
	"testing"

	mqttcommon "vigil-backend/common/mqtt"
	"vigil-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	handlers     map[string]mqttcommon.MessageHandler
	unsubscribed []string
	failOn       string
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, h mqttcommon.MessageHandler) error {
	if topic == f.failOn {
		return errors.New("broker refused")
	}
	if f.handlers == nil {
		f.handlers = map[string]mqttcommon.MessageHandler{}
	}
	f.handlers[topic] = h
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) IngestDeviceEvent(ctx context.Context, token string, ev service.DeviceEvent) (*service.IngestResult, error) {
	args := m.Called(token, ev)
	res, _ := args.Get(0).(*service.IngestResult)
	return res, args.Error(1)
}

func (m *mockIngester) IngestMotion(ctx context.Context, token string, ev service.MotionEvent) (*service.MotionResult, error) {
	args := m.Called(token, ev)
	res, _ := args.Get(0).(*service.MotionResult)
	return res, args.Error(1)
}

func startConsumer(t *testing.T, ing *mockIngester) (*fakeSubscriber, *MQTTConsumer) {
	t.Helper()
	sub := &fakeSubscriber{}
	c := NewMQTTConsumer(sub, ing, ing, 1, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))
	return sub, c
}

func TestMQTTConsumer_RoutesEvents(t *testing.T) {
	ing := &mockIngester{}
	ing.On("IngestDeviceEvent", "tok-1", service.DeviceEvent{Type: "fall", Severity: "high"}).
		Return(&service.IngestResult{DeviceID: "DEV_A"}, nil).Once()
	sub, _ := startConsumer(t, ing)

	err := sub.handlers[TopicEvents]("vigil/devices/tok-1/events", []byte(`{"type":"fall","severity":"high"}`))
	require.NoError(t, err)
	ing.AssertExpectations(t)
}

func TestMQTTConsumer_RoutesMotion(t *testing.T) {
	ing := &mockIngester{}
	ing.On("IngestMotion", "tok-1", service.MotionEvent{}).
		Return(&service.MotionResult{DeviceID: "DEV_A", MotionID: 7}, nil).Once()
	sub, _ := startConsumer(t, ing)

	require.NoError(t, sub.handlers[TopicMotion]("vigil/devices/tok-1/motion", nil))
	ing.AssertExpectations(t)
}

func TestMQTTConsumer_Errors(t *testing.T) {
	ing := &mockIngester{}
	ing.On("IngestDeviceEvent", "unknown", mock.Anything).Return(nil, service.ErrNotFound).Once()
	sub, _ := startConsumer(t, ing)
	h := sub.handlers[TopicEvents]

	assert.Error(t, h("vigil/devices/events", []byte(`{}`)))
	assert.Error(t, h("vigil/devices/tok-1/events", []byte(`not-json`)))
	assert.ErrorContains(t, h("vigil/devices/unknown/events", []byte(`{"type":"fall"}`)), "unknown device token")
	ing.AssertExpectations(t)
}

func TestMQTTConsumer_StartStop(t *testing.T) {
	sub := &fakeSubscriber{failOn: TopicMotion}
	c := NewMQTTConsumer(sub, &mockIngester{}, &mockIngester{}, 1, zap.NewNop())
	assert.Error(t, c.Start(context.Background()))

	sub.failOn = ""
	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	assert.Equal(t, []string{TopicEvents, TopicMotion}, sub.unsubscribed)
}
