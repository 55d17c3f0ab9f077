package mq_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	dest string
	msg  messaging.OutgoingMessage
}

type fakeClient struct {
	out []published
	err error
}

func (f *fakeClient) Publish(_ context.Context, dest string, msg messaging.OutgoingMessage) error {
	f.out = append(f.out, published{dest: dest, msg: msg})
	return f.err
}

func (f *fakeClient) Consume(context.Context, string, messaging.Handler, ...messaging.ConsumeOption) error {
	return nil
}

func (f *fakeClient) Close() error { return nil }

func TestMessaging_PublishDelivery(t *testing.T) {
	client := &fakeClient{}
	m := mq.NewMessaging(client, instrument.NewNoop())
	exp := time.Unix(1767225600, 0)

	ctx := instrument.SetCorrelationID(context.Background(), "cid-1")
	require.NoError(t, m.PublishDelivery(ctx, usecase.DeliveryEvent{
		Identity:  "+14155550100",
		Channel:   entity.IdentityKindPhone,
		Code:      "482913",
		ExpiresAt: exp,
	}))

	require.Len(t, client.out, 1)
	got := client.out[0]
	assert.Equal(t, event.OTPDeliveryDestination, got.dest)
	assert.Equal(t, "cid-1", got.msg.Headers[event.HeaderCorrelationID])
	assert.Equal(t, []byte("+14155550100"), got.msg.Key)

	var body event.OTPDeliveryMessage
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, event.OTPDeliveryMessage{
		Identity:  "+14155550100",
		Channel:   "phone",
		Code:      "482913",
		ExpiresAt: exp.Unix(),
	}, body)
}

func TestMessaging_PublishError(t *testing.T) {
	boom := errors.New("nsq: not connected")
	m := mq.NewMessaging(&fakeClient{err: boom}, instrument.NewNoop())

	err := m.PublishDelivery(context.Background(), usecase.DeliveryEvent{Identity: "a@b.co"})
	assert.ErrorIs(t, err, boom)
}
