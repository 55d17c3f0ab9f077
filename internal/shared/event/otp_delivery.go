// Package event holds the broker contracts shared by the otp publisher and
// the notification consumer.
package event

const (
	// OTPDeliveryDestination is the topic, subject or Pub/Sub topic id.
	OTPDeliveryDestination = "otp_delivery"
	// OTPDeliveryConsumerNotification names the notification consumer. It is
	// used as the NSQ channel, the NATS queue group, the Kafka group and the
	// Pub/Sub subscription alike.
	OTPDeliveryConsumerNotification = "otp_delivery_notification"

	// HeaderCorrelationID carries the request correlation ID.
	HeaderCorrelationID = "cID"
)

// OTPDeliveryMessage carries a plaintext code to the delivery channel. It is
// the only place the code leaves the issuing process.
type OTPDeliveryMessage struct {
	Identity string `json:"identity"`
	// Channel is the identity kind, "email" or "phone".
	Channel string `json:"channel"`
	Code    string `json:"code"`
	// ExpiresAt is unix seconds.
	ExpiresAt int64 `json:"expires_at"`
}
